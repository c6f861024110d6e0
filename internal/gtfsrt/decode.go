package gtfsrt

import (
	"errors"
	"fmt"
	"strings"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Format is the wire encoding of a feed payload.
type Format string

const (
	FormatProtobuf Format = "protobuf"
	FormatJSON     Format = "json"
)

// ParseFormat parses a feed format name. An empty name means protobuf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "protobuf", "pb", "proto":
		return FormatProtobuf, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown feed format %q", s)
	}
}

// ErrEmptyPayload is returned when a feed body is empty.
var ErrEmptyPayload = errors.New("empty feed payload")

// DecodeError reports a feed payload that could not be decoded.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s feed: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeFeed decodes a FeedMessage payload in the given format.
func DecodeFeed(data []byte, format Format) (feed *Feed, err error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: format, Err: ErrEmptyPayload}
	}

	defer func() {
		if r := recover(); r != nil {
			feed = nil
			err = &DecodeError{Format: format, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	msg := &gtfs.FeedMessage{}
	switch format {
	case FormatJSON:
		err = protojson.UnmarshalOptions{DiscardUnknown: true, AllowPartial: true}.Unmarshal(data, msg)
	case FormatProtobuf, "":
		format = FormatProtobuf
		err = proto.UnmarshalOptions{AllowPartial: true}.Unmarshal(data, msg)
	default:
		return nil, &DecodeError{Format: format, Err: errors.New("unsupported format")}
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	return fromFeedMessage(msg), nil
}

// DecodeAlerts decodes the alerts of a protobuf feed.
func DecodeAlerts(data []byte) ([]Alert, error) {
	return DecodeAlertsFormat(data, FormatProtobuf)
}

// DecodeAlertsFormat decodes the alerts of a feed in the given format.
func DecodeAlertsFormat(data []byte, format Format) ([]Alert, error) {
	feed, err := DecodeFeed(data, format)
	if err != nil {
		return nil, err
	}
	return feed.Alerts, nil
}

// DecodeTripUpdates decodes the trip updates of a protobuf feed.
func DecodeTripUpdates(data []byte) ([]TripUpdate, error) {
	return DecodeTripUpdatesFormat(data, FormatProtobuf)
}

// DecodeTripUpdatesFormat decodes the trip updates of a feed in the given format.
func DecodeTripUpdatesFormat(data []byte, format Format) ([]TripUpdate, error) {
	feed, err := DecodeFeed(data, format)
	if err != nil {
		return nil, err
	}
	return feed.TripUpdates, nil
}

// DecodeVehiclePositions decodes the vehicle positions of a protobuf feed.
func DecodeVehiclePositions(data []byte) ([]VehiclePosition, error) {
	return DecodeVehiclePositionsFormat(data, FormatProtobuf)
}

// DecodeVehiclePositionsFormat decodes the vehicle positions of a feed in the given format.
func DecodeVehiclePositionsFormat(data []byte, format Format) ([]VehiclePosition, error) {
	feed, err := DecodeFeed(data, format)
	if err != nil {
		return nil, err
	}
	return feed.VehiclePositions, nil
}

func fromFeedMessage(msg *gtfs.FeedMessage) *Feed {
	feed := &Feed{Timestamp: int64(msg.GetHeader().GetTimestamp())}

	for _, entity := range msg.GetEntity() {
		if entity.GetIsDeleted() {
			continue
		}
		if a := entity.GetAlert(); a != nil {
			feed.Alerts = append(feed.Alerts, toAlert(entity.GetId(), a))
		}
		if tu := entity.GetTripUpdate(); tu != nil {
			feed.TripUpdates = append(feed.TripUpdates, toTripUpdate(entity.GetId(), tu))
		}
		if vp := entity.GetVehicle(); vp != nil {
			feed.VehiclePositions = append(feed.VehiclePositions, toVehiclePosition(entity.GetId(), vp))
		}
	}

	return feed
}

func toAlert(id string, a *gtfs.Alert) Alert {
	alert := Alert{
		ID:              id,
		HeaderText:      translatedText(a.GetHeaderText()),
		DescriptionText: translatedText(a.GetDescriptionText()),
		URL:             translatedText(a.GetUrl()),
		Cause:           CauseFromCode(int32(a.GetCause())),
		Effect:          EffectFromCode(int32(a.GetEffect())),
		Severity:        SeverityFromCode(int32(a.GetSeverityLevel())),
	}

	for _, p := range a.GetActivePeriod() {
		alert.ActivePeriods = append(alert.ActivePeriods, TimeRange{
			Start: int64(p.GetStart()),
			End:   int64(p.GetEnd()),
		})
	}

	for _, e := range a.GetInformedEntity() {
		ie := InformedEntity{
			AgencyID: e.GetAgencyId(),
			RouteID:  e.GetRouteId(),
			StopID:   e.GetStopId(),
		}
		if trip := e.GetTrip(); trip != nil {
			ie.TripID = trip.GetTripId()
			if ie.RouteID == "" {
				ie.RouteID = trip.GetRouteId()
			}
			if trip.DirectionId != nil {
				d := int32(trip.GetDirectionId())
				ie.DirectionID = &d
			}
		}
		alert.InformedEntities = append(alert.InformedEntities, ie)
	}

	return alert
}

func toTripDescriptor(t *gtfs.TripDescriptor) TripDescriptor {
	td := TripDescriptor{
		TripID:               t.GetTripId(),
		RouteID:              t.GetRouteId(),
		StartDate:            t.GetStartDate(),
		StartTime:            t.GetStartTime(),
		ScheduleRelationship: ScheduleRelationshipFromCode(int32(t.GetScheduleRelationship())),
	}
	if t.DirectionId != nil {
		d := int32(t.GetDirectionId())
		td.DirectionID = &d
	}
	return td
}

func toVehicleDescriptor(v *gtfs.VehicleDescriptor) *VehicleDescriptor {
	if v == nil {
		return nil
	}
	return &VehicleDescriptor{
		ID:           v.GetId(),
		Label:        v.GetLabel(),
		LicensePlate: v.GetLicensePlate(),
	}
}

func toStopTimeEvent(e *gtfs.TripUpdate_StopTimeEvent) *StopTimeEvent {
	if e == nil {
		return nil
	}
	return &StopTimeEvent{
		Delay:       e.Delay,
		Time:        e.Time,
		Uncertainty: e.Uncertainty,
	}
}

func toTripUpdate(id string, tu *gtfs.TripUpdate) TripUpdate {
	update := TripUpdate{
		ID:        id,
		Trip:      toTripDescriptor(tu.GetTrip()),
		Vehicle:   toVehicleDescriptor(tu.GetVehicle()),
		Delay:     tu.Delay,
		Timestamp: int64(tu.GetTimestamp()),
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		update.StopTimeUpdates = append(update.StopTimeUpdates, StopTimeUpdate{
			StopSequence:         stu.StopSequence,
			StopID:               stu.GetStopId(),
			Arrival:              toStopTimeEvent(stu.GetArrival()),
			Departure:            toStopTimeEvent(stu.GetDeparture()),
			ScheduleRelationship: StopTimeScheduleRelationshipFromCode(int32(stu.GetScheduleRelationship())),
		})
	}

	return update
}

func toVehiclePosition(id string, vp *gtfs.VehiclePosition) VehiclePosition {
	pos := VehiclePosition{
		ID:                  id,
		Vehicle:             toVehicleDescriptor(vp.GetVehicle()),
		CurrentStopSequence: vp.CurrentStopSequence,
		StopID:              vp.GetStopId(),
		CurrentStatus:       VehicleStopStatusFromCode(int32(vp.GetCurrentStatus())),
		OccupancyStatus:     OccupancyStatusFromCode(int32(vp.GetOccupancyStatus())),
		CongestionLevel:     CongestionLevelFromCode(int32(vp.GetCongestionLevel())),
		Timestamp:           int64(vp.GetTimestamp()),
	}

	// Occupancy is optional and the wire default is EMPTY, which would
	// misreport vehicles whose feed carries no occupancy data.
	if vp.OccupancyStatus == nil {
		pos.OccupancyStatus = OccupancyNoDataAvailable
	}

	if trip := vp.GetTrip(); trip != nil {
		td := toTripDescriptor(trip)
		pos.Trip = &td
	}

	if p := vp.GetPosition(); p != nil {
		pos.Position = &Position{
			Latitude:  float64(p.GetLatitude()),
			Longitude: float64(p.GetLongitude()),
			Bearing:   float32Ptr(p.Bearing),
			Speed:     float32Ptr(p.Speed),
			Odometer:  p.Odometer,
		}
	}

	return pos
}

func float32Ptr(v *float32) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// translatedText picks the English translation, else the first one, else "".
func translatedText(ts *gtfs.TranslatedString) string {
	translations := ts.GetTranslation()
	if len(translations) == 0 {
		return ""
	}
	for _, t := range translations {
		if strings.EqualFold(t.GetLanguage(), "en") {
			return t.GetText()
		}
	}
	return translations[0].GetText()
}
