// Package influxdb records AVnet room and source telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//	room_power         tags: site_id, room_id, reason      fields: power (0/1)
//	source_selection   tags: site_id, room_id, output_index, status
//	                   fields: source_id
//	source_active_use  tags: site_id, source_id           fields: count
//	source_video       tags: site_id, source_id           fields: active (0/1)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteSourceActiveUse(4, 2)
//
// Write errors are delivered asynchronously through SetOnError.
package influxdb
