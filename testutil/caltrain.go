package testutil

import (
	"testing"

	"tidbyt.dev/timetable"
)

// A small feed shaped like Caltrain's: five stations, each with a
// northbound and a southbound platform, weekday and weekend service,
// and the agency specific extra tables.
//
// Weekday southbound: 101 runs the full line, 103 ends at Palo Alto,
// 701 is an express skipping 22nd Street and Palo Alto, 105 runs past
// midnight. Weekday northbound: 102 full line, 104 starts at Palo
// Alto. Weekend: 801 southbound, 802 and 803 northbound (803 calls at
// a synthetic stop with a six character id).
//
// 2020-07-03 (a Friday) runs the weekend schedule.
func CaltrainFiles() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_id,agency_name,agency_url,agency_timezone,agency_lang",
			"CT,Caltrain,http://www.caltrain.com,America/Los_Angeles,en",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"c_wk,1,1,1,1,1,0,0,20200101,20201231",
			"c_we,0,0,0,0,0,1,1,20200101,20201231",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"c_wk,20200703,2",
			"c_we,20200703,1",
		},
		"calendar_attributes.txt": {
			"service_id,service_description",
			"c_wk,Weekday",
			"c_we,Weekend",
		},
		"farezone_attributes.txt": {
			"zone_id,zone_name",
			"1,Zone 1",
			"2,Zone 2",
			"3,Zone 3",
			"4,Zone 4",
		},
		"fare_attributes.txt": {
			"fare_id,price,currency_type,payment_method,transfers",
			"OW_1,3.75,USD,1,0",
			"OW_2,6.00,USD,1,0",
			"OW_3,8.25,USD,1,0",
		},
		"fare_rules.txt": {
			"fare_id,route_id,origin_id,destination_id",
			"OW_1,,1,1",
			"OW_2,,1,2",
			"OW_3,,1,3",
		},
		"routes.txt": {
			"route_id,agency_id,route_short_name,route_long_name,route_desc,route_type,route_url",
			"L1,CT,Local,Local Weekday,,2,http://www.caltrain.com",
			"B7,CT,Bullet,Baby Bullet,,2,http://www.caltrain.com",
		},
		"directions.txt": {
			"route_id,direction_id,direction",
			"L1,0,North",
			"L1,1,South",
			"B7,0,North",
			"B7,1,South",
		},
		"realtime_routes.txt": {
			"route_id,realtime_enabled,realtime_routename,realtime_routecode",
			"L1,1,Local,L1",
			"B7,0,Bullet,B7",
		},
		"stops.txt": {
			"stop_id,stop_code,stop_name,stop_lat,stop_lon,zone_id,stop_url,location_type,parent_station",
			"70011,70011,San Francisco Caltrain,37.7764,-122.3943,1,,0,",
			"70012,70012,San Francisco Caltrain,37.7765,-122.3944,1,,0,",
			"70021,70021,22nd Street Caltrain,37.7575,-122.3926,1,,0,",
			"70022,70022,22nd Street Caltrain,37.7576,-122.3927,1,,0,",
			"70061,70061,Millbrae Caltrain,37.6000,-122.3867,2,,0,",
			"70062,70062,Millbrae Caltrain,37.6001,-122.3868,2,,0,",
			"70171,70171,Palo Alto Caltrain,37.4430,-122.1650,3,,0,",
			"70172,70172,Palo Alto Caltrain,37.4431,-122.1651,3,,0,",
			"70261,70261,San Jose Diridon Caltrain,37.3297,-121.9027,4,,0,",
			"70262,70262,San Jose Diridon Caltrain,37.3298,-121.9028,4,,0,",
			"777403,777403,Tamien Shuttle Caltrain,37.5000,-122.3000,,,0,",
		},
		"stop_attributes.txt": {
			"stop_id,accessibility_id,cardinal_direction,relative_position,stop_city",
			"70011,0,SB,,San Francisco",
			"70012,0,NB,,San Francisco",
			"70171,0,SB,,Palo Alto",
			"70172,0,NB,,Palo Alto",
		},
		"shapes.txt": {
			"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence",
			"cal_sf_sj,37.7764,-122.3943,1",
			"cal_sf_sj,37.6000,-122.3867,2",
			"cal_sf_sj,37.3297,-121.9027,3",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign,trip_short_name,direction_id,shape_id",
			"L1,c_wk,101,San Jose Diridon,101,1,cal_sf_sj",
			"L1,c_wk,103,Palo Alto,103,1,cal_sf_sj",
			"L1,c_wk,105,Millbrae,105,1,",
			"B7,c_wk,701,San Jose Diridon,701,1,",
			"L1,c_wk,102,San Francisco,102,0,",
			"L1,c_wk,104,San Francisco,104,0,",
			"L1,c_we,801,San Jose Diridon,801,1,",
			"L1,c_we,802,San Francisco,802,0,",
			"L1,c_we,803,San Francisco,803,0,",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"101,08:00:00,08:00:00,70012,1",
			"101,08:05:00,08:05:00,70022,2",
			"101,08:20:00,08:20:00,70062,3",
			"101,08:40:00,08:40:00,70172,4",
			"101,09:10:00,09:10:00,70262,5",
			"103,09:00:00,09:00:00,70012,1",
			"103,09:05:00,09:05:00,70022,2",
			"103,09:20:00,09:20:00,70062,3",
			"103,09:40:00,09:40:00,70172,4",
			"105,23:50:00,23:50:00,70012,1",
			"105,23:55:00,23:55:00,70022,2",
			"105,24:10:00,24:10:00,70062,3",
			"701,08:30:00,08:30:00,70012,1",
			"701,08:45:00,08:45:00,70062,2",
			"701,09:20:00,09:20:00,70262,3",
			"102,07:00:00,07:00:00,70261,1",
			"102,07:30:00,07:30:00,70171,2",
			"102,07:50:00,07:50:00,70061,3",
			"102,08:05:00,08:05:00,70021,4",
			"102,08:10:00,08:10:00,70011,5",
			"104,17:00:00,17:00:00,70171,1",
			"104,17:20:00,17:20:00,70061,2",
			"104,17:35:00,17:35:00,70021,3",
			"104,17:40:00,17:40:00,70011,4",
			"801,10:00:00,10:00:00,70012,1",
			"801,10:20:00,10:20:00,70062,2",
			"801,11:00:00,11:00:00,70262,3",
			"802,12:00:00,12:00:00,70261,1",
			"802,12:40:00,12:40:00,70061,2",
			"802,13:00:00,13:00:00,70011,3",
			"803,14:00:00,14:00:00,70261,1",
			"803,14:40:00,14:40:00,70061,2",
			"803,14:50:00,14:50:00,777403,3",
			"803,15:00:00,15:00:00,70011,4",
		},
	}
}

func CaltrainSchedule(t testing.TB, opts ...timetable.Option) *timetable.Schedule {
	return BuildSchedule(t, CaltrainFiles(), opts...)
}
