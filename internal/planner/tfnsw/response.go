package tfnsw

// TfNSW rapidJSON response types.

type systemMessage struct {
	Type   string `json:"type"`
	Module string `json:"module"`
	Code   int    `json:"code"`
	Text   string `json:"text"`
}

type tripResponse struct {
	Journeys       []tfJourney     `json:"journeys"`
	SystemMessages []systemMessage `json:"systemMessages"`
}

type tfJourney struct {
	Legs         []tfLeg `json:"legs"`
	Interchanges int     `json:"interchanges"`
	Fare         *tfFare `json:"fare"`
}

type tfFare struct {
	Tickets []tfTicket `json:"tickets"`
}

type tfTicket struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Person       string  `json:"person"`
	PriceBrutto  float64 `json:"priceBrutto"`
	PriceStation float64 `json:"priceStation"`
}

type tfLeg struct {
	Duration             int               `json:"duration"`
	Distance             int               `json:"distance"`
	IsRealtimeControlled bool              `json:"isRealtimeControlled"`
	Origin               tfLocation        `json:"origin"`
	Destination          tfLocation        `json:"destination"`
	Transportation       *tfTransportation `json:"transportation"`
	StopSequence         []tfLocation      `json:"stopSequence"`
	Coords               [][]float64       `json:"coords"`
	FootPathInfo         []tfFootPathInfo  `json:"footPathInfo"`
	Properties           map[string]any    `json:"properties"`
}

type tfFootPathInfo struct {
	Position string `json:"position"`
	Duration int    `json:"duration"`
}

type tfLocation struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	DisassembledName       string         `json:"disassembledName"`
	Type                   string         `json:"type"`
	Coord                  []float64      `json:"coord"`
	Parent                 *tfParent      `json:"parent"`
	ArrivalTimePlanned     string         `json:"arrivalTimePlanned"`
	ArrivalTimeEstimated   string         `json:"arrivalTimeEstimated"`
	DepartureTimePlanned   string         `json:"departureTimePlanned"`
	DepartureTimeEstimated string         `json:"departureTimeEstimated"`
	Properties             map[string]any `json:"properties"`
}

type tfParent struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisassembledName string `json:"disassembledName"`
	Type             string `json:"type"`
}

type tfTransportation struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	DisassembledName string         `json:"disassembledName"`
	Number           string         `json:"number"`
	Description      string         `json:"description"`
	Product          tfProduct      `json:"product"`
	Operator         *tfNamed       `json:"operator"`
	Destination      *tfNamed       `json:"destination"`
	Properties       map[string]any `json:"properties"`
}

type tfProduct struct {
	Class  int    `json:"class"`
	Name   string `json:"name"`
	IconID int    `json:"iconId"`
}

type tfNamed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type departureResponse struct {
	StopEvents     []tfStopEvent   `json:"stopEvents"`
	SystemMessages []systemMessage `json:"systemMessages"`
}

type tfStopEvent struct {
	Location               tfLocation        `json:"location"`
	DepartureTimePlanned   string            `json:"departureTimePlanned"`
	DepartureTimeEstimated string            `json:"departureTimeEstimated"`
	IsRealtimeControlled   bool              `json:"isRealtimeControlled"`
	Transportation         *tfTransportation `json:"transportation"`
	Properties             map[string]any    `json:"properties"`
}
