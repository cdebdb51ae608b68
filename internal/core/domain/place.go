package domain

// GeocodeResult is one candidate returned by a geocoding provider.
type GeocodeResult struct {
	Name        string
	Street      string
	HouseNumber string
	City        string
	Postcode    string
	State       string
	Country     string
	OSMKey      string
	OSMValue    string
	OSMType     string // N, W or R
	OSMID       int64
	Location    GeoPoint
}
