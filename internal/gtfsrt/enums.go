package gtfsrt

// Cause is the cause of an alert.
type Cause string

const (
	CauseUnknown          Cause = "unknown"
	CauseOther            Cause = "other"
	CauseTechnicalProblem Cause = "technical_problem"
	CauseStrike           Cause = "strike"
	CauseDemonstration    Cause = "demonstration"
	CauseAccident         Cause = "accident"
	CauseHoliday          Cause = "holiday"
	CauseWeather          Cause = "weather"
	CauseMaintenance      Cause = "maintenance"
	CauseConstruction     Cause = "construction"
	CausePoliceActivity   Cause = "police_activity"
	CauseMedicalEmergency Cause = "medical_emergency"
)

var causeCodes = map[int32]Cause{
	1:  CauseUnknown,
	2:  CauseOther,
	3:  CauseTechnicalProblem,
	4:  CauseStrike,
	5:  CauseDemonstration,
	6:  CauseAccident,
	7:  CauseHoliday,
	8:  CauseWeather,
	9:  CauseMaintenance,
	10: CauseConstruction,
	11: CausePoliceActivity,
	12: CauseMedicalEmergency,
}

// Effect is the effect of an alert on service.
type Effect string

const (
	EffectNoService          Effect = "no_service"
	EffectReducedService     Effect = "reduced_service"
	EffectSignificantDelays  Effect = "significant_delays"
	EffectDetour             Effect = "detour"
	EffectAdditionalService  Effect = "additional_service"
	EffectModifiedService    Effect = "modified_service"
	EffectOther              Effect = "other_effect"
	EffectUnknown            Effect = "unknown"
	EffectStopMoved          Effect = "stop_moved"
	EffectNoEffect           Effect = "no_effect"
	EffectAccessibilityIssue Effect = "accessibility_issue"
)

var effectCodes = map[int32]Effect{
	1:  EffectNoService,
	2:  EffectReducedService,
	3:  EffectSignificantDelays,
	4:  EffectDetour,
	5:  EffectAdditionalService,
	6:  EffectModifiedService,
	7:  EffectOther,
	8:  EffectUnknown,
	9:  EffectStopMoved,
	10: EffectNoEffect,
	11: EffectAccessibilityIssue,
}

// Severity is the severity of an alert.
type Severity string

const (
	SeverityUnknown Severity = "unknown"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySevere  Severity = "severe"
)

var severityCodes = map[int32]Severity{
	1: SeverityUnknown,
	2: SeverityInfo,
	3: SeverityWarning,
	4: SeveritySevere,
}

// ScheduleRelationship is the relation of a trip to its schedule.
type ScheduleRelationship string

const (
	ScheduleScheduled   ScheduleRelationship = "scheduled"
	ScheduleAdded       ScheduleRelationship = "added"
	ScheduleUnscheduled ScheduleRelationship = "unscheduled"
	ScheduleCanceled    ScheduleRelationship = "canceled"
	ScheduleReplacement ScheduleRelationship = "replacement"
	ScheduleDuplicated  ScheduleRelationship = "duplicated"
	ScheduleDeleted     ScheduleRelationship = "deleted"
)

var scheduleCodes = map[int32]ScheduleRelationship{
	0: ScheduleScheduled,
	1: ScheduleAdded,
	2: ScheduleUnscheduled,
	3: ScheduleCanceled,
	5: ScheduleReplacement,
	6: ScheduleDuplicated,
	7: ScheduleDeleted,
}

// StopTimeScheduleRelationship is the relation of a stop-time update to its schedule.
type StopTimeScheduleRelationship string

const (
	StopTimeScheduled   StopTimeScheduleRelationship = "scheduled"
	StopTimeSkipped     StopTimeScheduleRelationship = "skipped"
	StopTimeNoData      StopTimeScheduleRelationship = "no_data"
	StopTimeUnscheduled StopTimeScheduleRelationship = "unscheduled"
)

var stopTimeScheduleCodes = map[int32]StopTimeScheduleRelationship{
	0: StopTimeScheduled,
	1: StopTimeSkipped,
	2: StopTimeNoData,
	3: StopTimeUnscheduled,
}

// VehicleStopStatus is the status of a vehicle relative to its current stop.
type VehicleStopStatus string

const (
	StatusIncomingAt  VehicleStopStatus = "incoming_at"
	StatusStoppedAt   VehicleStopStatus = "stopped_at"
	StatusInTransitTo VehicleStopStatus = "in_transit_to"
)

var stopStatusCodes = map[int32]VehicleStopStatus{
	0: StatusIncomingAt,
	1: StatusStoppedAt,
	2: StatusInTransitTo,
}

// OccupancyStatus is the passenger load of a vehicle.
type OccupancyStatus string

const (
	OccupancyEmpty                   OccupancyStatus = "empty"
	OccupancyManySeatsAvailable      OccupancyStatus = "many_seats_available"
	OccupancyFewSeatsAvailable       OccupancyStatus = "few_seats_available"
	OccupancyStandingRoomOnly        OccupancyStatus = "standing_room_only"
	OccupancyCrushedStandingRoomOnly OccupancyStatus = "crushed_standing_room_only"
	OccupancyFull                    OccupancyStatus = "full"
	OccupancyNotAcceptingPassengers  OccupancyStatus = "not_accepting_passengers"
	OccupancyNoDataAvailable         OccupancyStatus = "no_data_available"
	OccupancyNotBoardable            OccupancyStatus = "not_boardable"
)

var occupancyCodes = map[int32]OccupancyStatus{
	0: OccupancyEmpty,
	1: OccupancyManySeatsAvailable,
	2: OccupancyFewSeatsAvailable,
	3: OccupancyStandingRoomOnly,
	4: OccupancyCrushedStandingRoomOnly,
	5: OccupancyFull,
	6: OccupancyNotAcceptingPassengers,
	7: OccupancyNoDataAvailable,
	8: OccupancyNotBoardable,
}

// CongestionLevel is the traffic congestion around a vehicle.
type CongestionLevel string

const (
	CongestionUnknown          CongestionLevel = "unknown"
	CongestionRunningSmoothly  CongestionLevel = "running_smoothly"
	CongestionStopAndGo        CongestionLevel = "stop_and_go"
	CongestionCongestion       CongestionLevel = "congestion"
	CongestionSevereCongestion CongestionLevel = "severe_congestion"
)

var congestionCodes = map[int32]CongestionLevel{
	0: CongestionUnknown,
	1: CongestionRunningSmoothly,
	2: CongestionStopAndGo,
	3: CongestionCongestion,
	4: CongestionSevereCongestion,
}

func lookup[T any](table map[int32]T, code int32, fallback T) T {
	if v, ok := table[code]; ok {
		return v
	}
	return fallback
}

// CauseFromCode maps a wire value to a Cause. Unrecognized values map to CauseUnknown.
func CauseFromCode(code int32) Cause { return lookup(causeCodes, code, CauseUnknown) }

// EffectFromCode maps a wire value to an Effect. Unrecognized values map to EffectUnknown.
func EffectFromCode(code int32) Effect { return lookup(effectCodes, code, EffectUnknown) }

// SeverityFromCode maps a wire value to a Severity. Unrecognized values map to SeverityUnknown.
func SeverityFromCode(code int32) Severity { return lookup(severityCodes, code, SeverityUnknown) }

// ScheduleRelationshipFromCode maps a wire value to a trip ScheduleRelationship.
// Unrecognized values map to ScheduleScheduled.
func ScheduleRelationshipFromCode(code int32) ScheduleRelationship {
	return lookup(scheduleCodes, code, ScheduleScheduled)
}

// StopTimeScheduleRelationshipFromCode maps a wire value to a stop-time relationship.
// Unrecognized values map to StopTimeScheduled.
func StopTimeScheduleRelationshipFromCode(code int32) StopTimeScheduleRelationship {
	return lookup(stopTimeScheduleCodes, code, StopTimeScheduled)
}

// VehicleStopStatusFromCode maps a wire value to a VehicleStopStatus.
// Unrecognized values map to StatusInTransitTo.
func VehicleStopStatusFromCode(code int32) VehicleStopStatus {
	return lookup(stopStatusCodes, code, StatusInTransitTo)
}

// OccupancyStatusFromCode maps a wire value to an OccupancyStatus.
// Unrecognized values map to OccupancyNoDataAvailable.
func OccupancyStatusFromCode(code int32) OccupancyStatus {
	return lookup(occupancyCodes, code, OccupancyNoDataAvailable)
}

// CongestionLevelFromCode maps a wire value to a CongestionLevel.
// Unrecognized values map to CongestionUnknown.
func CongestionLevelFromCode(code int32) CongestionLevel {
	return lookup(congestionCodes, code, CongestionUnknown)
}
