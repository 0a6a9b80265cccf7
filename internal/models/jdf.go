package models

import (
	"time"
)

// Carrier is the operator of the lines in one JDF bundle (Dopravci.txt).
// Natural key: ICO.
type Carrier struct {
	ID            int64   `db:"id" json:"id"`
	ICO           *string `db:"ico" json:"ico"`
	DIC           *string `db:"dic" json:"dic"`
	Name          *string `db:"name" json:"name"`
	FirmType      *string `db:"firm_type" json:"firmType"`
	PersonName    *string `db:"person_name" json:"personName"`
	Address       *string `db:"address" json:"address"`
	Phone         *string `db:"phone" json:"phone"`
	DispatchPhone *string `db:"dispatch_phone" json:"dispatchPhone"`
	InfoPhone     *string `db:"info_phone" json:"infoPhone"`
	Fax           *string `db:"fax" json:"fax"`
	Email         *string `db:"email" json:"email"`
	Website       *string `db:"website" json:"website"`
}

// Line is a numbered service route (Linky.txt).
// Natural key: (Number, ICOCarrier).
type Line struct {
	ID                int64   `db:"id" json:"id"`
	Number            *string `db:"number" json:"number"`
	Name              *string `db:"name" json:"name"`
	ICOCarrier        *string `db:"ico_carrier" json:"icoCarrier"`
	LineType          *string `db:"line_type" json:"lineType"`
	VehicleType       *string `db:"vehicle_type" json:"vehicleType"`
	IsDetour          bool    `db:"is_detour" json:"isDetour"`
	IsGrouped         bool    `db:"is_grouped" json:"isGrouped"`
	IsCoded           bool    `db:"is_coded" json:"isCoded"`
	Reserve           *string `db:"reserve" json:"reserve"`
	License           *string `db:"license" json:"license"`
	LicenseValidFrom  *Date   `db:"license_valid_from" json:"licenseValidFrom"`
	LicenseValidTo    *Date   `db:"license_valid_to" json:"licenseValidTo"`
	ScheduleValidFrom *Date   `db:"schedule_valid_from" json:"scheduleValidFrom"`
	ScheduleValidTo   *Date   `db:"schedule_valid_to" json:"scheduleValidTo"`
	CarrierID         *int64  `db:"carrier_id" json:"carrierId"`
}

// Stop is a physical location (Zastavky.txt). Lat/Lon and DuplicateRootID are
// maintained outside the import pipeline and never overwritten by it.
type Stop struct {
	ID              int64    `db:"id" json:"id"`
	Number          *int     `db:"number" json:"number"`
	Name            *string  `db:"name" json:"name"`
	NameNormalized  *string  `db:"name_normalized" json:"nameNormalized"`
	District        *string  `db:"district" json:"district"`
	NearPoint       *string  `db:"near_point" json:"nearPoint"`
	NearCity        *string  `db:"near_city" json:"nearCity"`
	Country         *string  `db:"country" json:"country"`
	Lat             *float64 `db:"lat" json:"lat"`
	Lon             *float64 `db:"lon" json:"lon"`
	DuplicateRootID *int64   `db:"duplicate_root_id" json:"duplicateRootId"`

	// MatchKey is the deduplication key computed by the active stop key policy.
	MatchKey *string `db:"match_key" json:"-"`
}

// Code is a fixed lookup code (Pevnykod.txt). Natural key: InternalCode.
type Code struct {
	ID           int64   `db:"id" json:"id"`
	InternalCode *string `db:"internal_code" json:"internalCode"`
	Code         *string `db:"code" json:"code"`
	Internal     *string `db:"internal" json:"internal"`
}

// Connection is one scheduled trip on a line (Spoje.txt).
// Natural key: (LineNumber, ConnectionNumber).
type Connection struct {
	ID                int64   `db:"id" json:"id"`
	LineNumber        *int    `db:"line_number" json:"lineNumber"`
	ConnectionNumber  *int    `db:"connection_number" json:"connectionNumber"`
	Code1             *string `db:"code1" json:"code1"`
	Code2             *string `db:"code2" json:"code2"`
	Code3             *string `db:"code3" json:"code3"`
	Code4             *string `db:"code4" json:"code4"`
	Code5             *string `db:"code5" json:"code5"`
	Code6             *string `db:"code6" json:"code6"`
	Code7             *string `db:"code7" json:"code7"`
	Code8             *string `db:"code8" json:"code8"`
	Code9             *string `db:"code9" json:"code9"`
	Code10            *string `db:"code10" json:"code10"`
	ConnectionGroupID *int    `db:"connection_group_id" json:"connectionGroupId"`
	LineID            *int64  `db:"line_id" json:"lineId"`
}

// StopConnection is one stop visit of a connection (Zasspoje.txt).
// Natural key: (LineNumber, ConnectionNumber, StopNumber).
type StopConnection struct {
	ID               int64    `db:"id" json:"id"`
	LineNumber       *int     `db:"line_number" json:"lineNumber"`
	ConnectionNumber *int     `db:"connection_number" json:"connectionNumber"`
	TariffNumber     *int     `db:"tariff_number" json:"tariffNumber"`
	StopNumber       *int     `db:"stop_number" json:"stopNumber"`
	MarkerCode       *string  `db:"marker_code" json:"markerCode"`
	StationNumber    *string  `db:"station_number" json:"stationNumber"`
	Code1            *string  `db:"code1" json:"code1"`
	Code2            *string  `db:"code2" json:"code2"`
	Kilometers       *float64 `db:"kilometers" json:"kilometers"`
	Arrival          *string  `db:"arrival" json:"arrival"`
	Departure        *string  `db:"departure" json:"departure"`

	// Derived timestamps, filled in by a separate process.
	ArrivalTime   *time.Time `db:"arrival_time" json:"arrivalTime"`
	DepartureTime *time.Time `db:"departure_time" json:"departureTime"`

	LineID *int64 `db:"line_id" json:"lineId"`
	StopID *int64 `db:"stop_id" json:"stopId"`
}
