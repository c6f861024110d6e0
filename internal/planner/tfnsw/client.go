// Package tfnsw implements the planner against the Transport for NSW trip planner API.
package tfnsw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/provider/resilience"
)

const (
	// ProviderName identifies this planner.
	ProviderName = "tfnsw"

	// DefaultBaseURL is the TfNSW open data API base URL.
	DefaultBaseURL = "https://api.transport.nsw.gov.au"

	// DefaultTimezone is the timezone itdDate and itdTime are expressed in.
	DefaultTimezone = "Australia/Sydney"

	apiVersion      = "10.2.1.42"
	defaultMaxTrips = 6
)

// Error codes the planner reports when it simply found no connection.
var noTripCodes = map[int]bool{-8010: true, -8011: true}

// transitClasses are the product classes that can be excluded from a trip request.
var transitClasses = []int{
	journey.ClassTrain, journey.ClassMetro, journey.ClassLightRail, journey.ClassBus,
	journey.ClassCoach, journey.ClassFerry, journey.ClassSchoolBus,
}

// ClientConfig holds configuration for the TfNSW client.
type ClientConfig struct {
	// APIKey is the TfNSW open data API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the TfNSW API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Location is the timezone request times are sent in (default: Australia/Sydney).
	Location *time.Location

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a TfNSW trip planner client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	location   *time.Location
	logger     zerolog.Logger
}

var _ planner.Planner = (*Client)(nil)

// NewClient creates a new TfNSW client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.PlannerClientConfig(ProviderName))
	}

	loc := cfg.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		location:   loc,
		logger:     cfg.Logger.With().Str("component", "planner").Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// PlanTrip fetches journeys from the trip endpoint.
func (c *Client) PlanTrip(ctx context.Context, req planner.TripRequest) ([]journey.Journey, error) {
	if req.Origin == "" || req.Destination == "" {
		return nil, planner.PlanningFailed("origin and destination are required", nil)
	}

	q := c.baseQuery(req.Time)
	if req.ArriveBy {
		q.Set("depArrMacro", "arr")
	} else {
		q.Set("depArrMacro", "dep")
	}
	setPlace(q, "origin", req.Origin)
	setPlace(q, "destination", req.Destination)

	maxTrips := req.MaxResults
	if maxTrips <= 0 {
		maxTrips = defaultMaxTrips
	}
	q.Set("calcNumberOfTrips", strconv.Itoa(maxTrips))
	q.Set("TfNSWTR", "true")
	excludeModes(q, req.Modes)

	var resp tripResponse
	if err := c.get(ctx, "/v1/tp/trip", q, &resp); err != nil {
		return nil, err
	}

	if len(resp.Journeys) == 0 {
		if msg, failed := plannerFailure(resp.SystemMessages); failed {
			return nil, planner.PlanningFailed(msg, nil)
		}
		return []journey.Journey{}, nil
	}

	journeys := make([]journey.Journey, 0, len(resp.Journeys))
	for i := range resp.Journeys {
		j := toJourney(&resp.Journeys[i])
		if len(j.Legs) == 0 {
			continue
		}
		journeys = append(journeys, j)
	}

	c.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Int("journeys", len(journeys)).
		Msg("trip planned")

	return journeys, nil
}

// Departures fetches the departure board of a stop.
func (c *Client) Departures(ctx context.Context, req planner.DepartureRequest) ([]journey.Departure, error) {
	if req.StopID == "" {
		return nil, planner.PlanningFailed("stop id is required", nil)
	}

	q := c.baseQuery(req.Time)
	q.Set("mode", "direct")
	q.Set("type_dm", "stop")
	q.Set("name_dm", req.StopID)
	q.Set("depArrMacro", "dep")
	q.Set("departureMonitorMacro", "true")
	q.Set("TfNSWDM", "true")

	var resp departureResponse
	if err := c.get(ctx, "/v1/tp/departure_mon", q, &resp); err != nil {
		return nil, err
	}

	if len(resp.StopEvents) == 0 {
		if msg, failed := plannerFailure(resp.SystemMessages); failed {
			return nil, planner.PlanningFailed(msg, nil)
		}
		return []journey.Departure{}, nil
	}

	deps := make([]journey.Departure, 0, len(resp.StopEvents))
	for i := range resp.StopEvents {
		deps = append(deps, toDeparture(&resp.StopEvents[i]))
	}
	if req.Limit > 0 && len(deps) > req.Limit {
		deps = deps[:req.Limit]
	}
	return deps, nil
}

// baseQuery returns the parameters every request carries.
func (c *Client) baseQuery(at time.Time) url.Values {
	q := url.Values{}
	q.Set("outputFormat", "rapidJSON")
	q.Set("coordOutputFormat", "EPSG:4326")
	q.Set("version", apiVersion)
	if !at.IsZero() {
		local := at.In(c.location)
		q.Set("itdDate", local.Format("20060102"))
		q.Set("itdTime", local.Format("1504"))
	}
	return q
}

// get performs a GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return planner.FetchFailed("creating request", err)
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return planner.FetchFailed("executing request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return planner.FetchFailed(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Str("path", path).Msg("planner rejected request")
		return planner.PlanningFailed(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return planner.FetchFailed("decoding response", err)
	}
	return nil
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// setPlace sets type_<role> and name_<role>. Coordinates are sent as "lon:lat:EPSG:4326".
func setPlace(q url.Values, role, place string) {
	if p, err := geo.ParsePoint(place); err == nil {
		q.Set("type_"+role, "coord")
		q.Set("name_"+role, strconv.FormatFloat(p.Lon, 'f', 6, 64)+":"+strconv.FormatFloat(p.Lat, 'f', 6, 64)+":EPSG:4326")
		return
	}
	q.Set("type_"+role, "any")
	q.Set("name_"+role, place)
}

// excludeModes excludes every transit class not belonging to one of modes.
func excludeModes(q url.Values, modes []journey.Mode) {
	if len(modes) == 0 {
		return
	}
	allowed := make(map[int]bool)
	for _, m := range modes {
		for _, class := range journey.ClassesForMode(m) {
			allowed[class] = true
		}
	}
	q.Set("excludedMeans", "checkbox")
	for _, class := range transitClasses {
		if !allowed[class] {
			q.Set("exclMOT_"+strconv.Itoa(class), "1")
		}
	}
}

// plannerFailure reports the first error message that is not a plain "no trip found".
func plannerFailure(msgs []systemMessage) (string, bool) {
	for _, m := range msgs {
		if !strings.EqualFold(m.Type, "error") || noTripCodes[m.Code] {
			continue
		}
		text := m.Text
		if text == "" {
			text = fmt.Sprintf("planner error %d", m.Code)
		}
		return text, true
	}
	return "", false
}

func toJourney(tj *tfJourney) journey.Journey {
	j := journey.Journey{
		Legs:         make([]journey.Leg, 0, len(tj.Legs)),
		Interchanges: tj.Interchanges,
	}
	for i := range tj.Legs {
		j.Legs = append(j.Legs, toLeg(&tj.Legs[i]))
	}
	if tj.Fare != nil && len(tj.Fare.Tickets) > 0 {
		fare := &journey.Fare{Tickets: make([]journey.Ticket, 0, len(tj.Fare.Tickets))}
		for _, t := range tj.Fare.Tickets {
			fare.Tickets = append(fare.Tickets, journey.Ticket{
				ID:           t.ID,
				Name:         t.Name,
				Person:       t.Person,
				PriceBrutto:  t.PriceBrutto,
				PriceStation: t.PriceStation,
			})
		}
		j.Fare = fare
	}
	return j
}

func toLeg(tl *tfLeg) journey.Leg {
	leg := journey.Leg{
		Origin:               toLocation(&tl.Origin),
		Destination:          toLocation(&tl.Destination),
		Duration:             tl.Duration,
		Distance:             tl.Distance,
		IsRealtimeControlled: tl.IsRealtimeControlled,
		Properties:           stringProps(tl.Properties),
	}
	if tl.Transportation != nil {
		t := toTransportation(tl.Transportation)
		leg.Transportation = &t
	}
	if len(tl.StopSequence) > 0 {
		leg.StopSequence = make([]journey.Location, 0, len(tl.StopSequence))
		for i := range tl.StopSequence {
			leg.StopSequence = append(leg.StopSequence, toLocation(&tl.StopSequence[i]))
		}
	}
	for _, c := range tl.Coords {
		if p := toPoint(c); p != nil {
			leg.Coords = append(leg.Coords, *p)
		}
	}
	if leg.Distance == 0 && leg.IsWalking() {
		if meters, ok := footpathMeters(tl.FootPathInfo); ok {
			leg.Distance = meters
		}
	}
	return leg
}

func toLocation(tl *tfLocation) journey.Location {
	loc := journey.Location{
		ID:                     tl.ID,
		Name:                   tl.Name,
		DisassembledName:       tl.DisassembledName,
		Type:                   tl.Type,
		Coord:                  toPoint(tl.Coord),
		ArrivalTimePlanned:     parseTime(tl.ArrivalTimePlanned),
		ArrivalTimeEstimated:   parseTime(tl.ArrivalTimeEstimated),
		DepartureTimePlanned:   parseTime(tl.DepartureTimePlanned),
		DepartureTimeEstimated: parseTime(tl.DepartureTimeEstimated),
		Properties:             stringProps(tl.Properties),
	}
	if tl.Parent != nil {
		loc.ParentID = tl.Parent.ID
		loc.ParentName = tl.Parent.Name
		if loc.DisassembledName == "" && tl.Parent.DisassembledName != "" && tl.Type == "platform" {
			loc.DisassembledName = tl.Parent.DisassembledName
		}
	}
	return loc
}

func toTransportation(tt *tfTransportation) journey.Transportation {
	t := journey.Transportation{
		ID:               tt.ID,
		Name:             tt.Name,
		DisassembledName: tt.DisassembledName,
		Number:           tt.Number,
		Description:      tt.Description,
		Product: journey.Product{
			Class:  tt.Product.Class,
			Name:   tt.Product.Name,
			IconID: tt.Product.IconID,
		},
		Properties: stringProps(tt.Properties),
	}
	if tt.Operator != nil {
		t.Operator = tt.Operator.Name
	}
	if tt.Destination != nil {
		t.DestinationName = tt.Destination.Name
	}
	return t
}

func toDeparture(ev *tfStopEvent) journey.Departure {
	d := journey.Departure{
		Location:               toLocation(&ev.Location),
		DepartureTimePlanned:   parseTime(ev.DepartureTimePlanned),
		DepartureTimeEstimated: parseTime(ev.DepartureTimeEstimated),
		IsRealtimeControlled:   ev.IsRealtimeControlled,
		Properties:             stringProps(ev.Properties),
	}
	if ev.Transportation != nil {
		d.Transportation = toTransportation(ev.Transportation)
	}
	return d
}

// toPoint converts a [lat, lon] pair.
func toPoint(c []float64) *geo.Point {
	if len(c) < 2 {
		return nil
	}
	p := geo.Point{Lat: c[0], Lon: c[1]}
	if !p.Valid() || (p.Lat == 0 && p.Lon == 0) {
		return nil
	}
	return &p
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// stringProps keeps the scalar properties, formatted as strings.
func stringProps(props map[string]any) map[string]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// footpathMeters sums the footpath durations reported for a walking leg and
// converts them to meters at walking speed.
func footpathMeters(info []tfFootPathInfo) (int, bool) {
	if len(info) == 0 {
		return 0, false
	}
	var seconds int
	for _, f := range info {
		seconds += f.Duration
	}
	if seconds <= 0 {
		return 0, false
	}
	return int(float64(seconds) * geo.WalkingSpeed), true
}
