package mapview

// SymbolCircle is the only marker shape the widget draws.
const SymbolCircle = "circle"

// MarkerStyle is the fixed look of a sighting marker.
type MarkerStyle struct {
	Shape        string  `json:"shape"`
	Scale        float64 `json:"scale"`
	FillColor    string  `json:"fillColor"`
	FillOpacity  float64 `json:"fillOpacity"`
	StrokeColor  string  `json:"strokeColor"`
	StrokeWeight float64 `json:"strokeWeight"`
}

// DefaultMarkerStyle is applied to every marker.
var DefaultMarkerStyle = MarkerStyle{
	Shape:        SymbolCircle,
	Scale:        8,
	FillColor:    "#FF6B6B",
	FillOpacity:  0.8,
	StrokeColor:  "#fff",
	StrokeWeight: 2,
}

// StyleRule is one map styling rule (feature/element selector plus color).
type StyleRule struct {
	FeatureType string `json:"featureType,omitempty"`
	ElementType string `json:"elementType,omitempty"`
	Color       string `json:"color"`
}

// DarkTheme is the base map style views are created with.
var DarkTheme = []StyleRule{
	{ElementType: "geometry", Color: "#212121"},
	{ElementType: "labels.text.fill", Color: "#757575"},
	{ElementType: "labels.text.stroke", Color: "#212121"},
	{FeatureType: "administrative", ElementType: "geometry", Color: "#757575"},
	{FeatureType: "administrative.country", ElementType: "labels.text.fill", Color: "#9e9e9e"},
	{FeatureType: "administrative.locality", ElementType: "labels.text.fill", Color: "#bdbdbd"},
	{FeatureType: "poi", ElementType: "labels.text.fill", Color: "#757575"},
	{FeatureType: "poi.park", ElementType: "geometry", Color: "#181818"},
	{FeatureType: "poi.park", ElementType: "labels.text.fill", Color: "#616161"},
	{FeatureType: "poi.park", ElementType: "labels.text.stroke", Color: "#1b1b1b"},
	{FeatureType: "road", ElementType: "geometry.fill", Color: "#2c2c2c"},
	{FeatureType: "road", ElementType: "labels.text.fill", Color: "#8a8a8a"},
	{FeatureType: "road.arterial", ElementType: "geometry", Color: "#373737"},
	{FeatureType: "road.highway", ElementType: "geometry", Color: "#3c3c3c"},
	{FeatureType: "road.highway.controlled_access", ElementType: "geometry", Color: "#4e4e4e"},
	{FeatureType: "road.local", ElementType: "labels.text.fill", Color: "#616161"},
	{FeatureType: "transit", ElementType: "labels.text.fill", Color: "#757575"},
	{FeatureType: "water", ElementType: "geometry", Color: "#000000"},
	{FeatureType: "water", ElementType: "labels.text.fill", Color: "#3d3d3d"},
}
