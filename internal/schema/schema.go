// Package schema holds the Category Schema: the closed, static list of
// market-data fields that every crawler, extractor, refiner, and writer in
// hotelbrain enumerates identically.
package schema

// Category describes one field of the Market-Data Record.
type Category struct {
	// Name is the stable identifier and the column/JSON-key used everywhere.
	Name string
	// Description is substituted into LLM prompts, with "[hotelName]"
	// replaced by the hotel's human-facing name.
	Description string
	// CaptureGuide, if present, is additional extractor guidance (e.g. "do
	// not paraphrase").
	CaptureGuide string
	// MergeGuide, if present, is additional adjudicator/refiner guidance.
	MergeGuide string
}

// OtherCategory is the name of the catch-all category. It has no
// field-specific prioritization rules in the refiner and is the only
// category that drives OtherStructured derivation.
const OtherCategory = "other"

// OtherStructuredField is the JSON-serialized derived column, not itself a
// Category Schema entry but included in the closed column set (Invariant M1).
const OtherStructuredField = "other_structured"

// categories is the single source of truth for the Category Schema. Order
// matters only for prompt stability, not for correctness.
var categories = []Category{
	{
		Name:        "basic_information",
		Description: "General facts about [hotelName]: star rating, brand affiliation, year built/renovated, number of rooms, address.",
	},
	{
		Name:        "contacts",
		Description: "Phone numbers, email addresses, and physical mailing address for [hotelName].",
		MergeGuide:  "On conflicting contact details, prefer the newly supplied value.",
	},
	{
		Name:        "accessibility",
		Description: "Accessibility features of [hotelName]: wheelchair access, accessible rooms/bathrooms, elevators, assistive devices.",
	},
	{
		Name:        "amenities",
		Description: "On-site amenities at [hotelName]: pools, spas, gyms, business centers, and similar facilities.",
	},
	{
		Name:        "cleanliness_enhancements",
		Description: "Enhanced cleaning or hygiene protocols advertised by [hotelName].",
	},
	{
		Name:        "food_beverage",
		Description: "Restaurants, bars, room service, and breakfast offerings at [hotelName].",
	},
	{
		Name:        "guest_rooms",
		Description: "Room types, bed configurations, views, and in-room amenities at [hotelName].",
	},
	{
		Name:        "guest_services_front_desk",
		Description: "Front desk hours, concierge, check-in/check-out times, and other guest services at [hotelName].",
	},
	{
		Name:        "housekeeping_laundry",
		Description: "Housekeeping schedule and laundry/dry-cleaning services at [hotelName].",
	},
	{
		Name:        "local_area_information",
		Description: "Nearby attractions, distances to landmarks, and local area guidance for guests of [hotelName].",
	},
	{
		Name:        "meeting_events",
		Description: "Meeting rooms, event spaces, and conference capacity at [hotelName].",
	},
	{
		Name:        "on_property_convenience",
		Description: "Convenience features on the property of [hotelName]: gift shops, vending, ATMs, and similar.",
	},
	{
		Name:        "parking_transportation",
		Description: "Parking options, valet, shuttle service, and transportation access at [hotelName].",
	},
	{
		Name:        "policies",
		Description: "Cancellation, pet, smoking, age, and other stated policies of [hotelName].",
		MergeGuide:  "Prefer the most recently stated policy on yes/no or numeric conflicts.",
	},
	{
		Name:        "recreation_fitness",
		Description: "Recreational and fitness facilities and activities at [hotelName].",
	},
	{
		Name:        "safety_security",
		Description: "Safety and security features of [hotelName]: smoke detectors, security staff, safes.",
	},
	{
		Name:        "technology_business_services",
		Description: "Wi-Fi, business center equipment, and other technology services at [hotelName].",
	},
	{
		Name:         "faq",
		Description:  "Frequently asked questions and answers published by [hotelName].",
		CaptureGuide: "Preserve explicit question/answer pairs verbatim; do not paraphrase or summarize.",
	},
	{
		Name:        OtherCategory,
		Description: "Any other noteworthy information about [hotelName] that does not fit the categories above.",
	},
}

// All returns the closed Category Schema in a stable, non-mutable order.
func All() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Names returns just the category names, in schema order.
func Names() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

var byName = func() map[string]Category {
	m := make(map[string]Category, len(categories))
	for _, c := range categories {
		m[c.Name] = c
	}
	return m
}()

// Lookup returns the Category for name and whether it exists in the schema.
func Lookup(name string) (Category, bool) {
	c, ok := byName[name]
	return c, ok
}

// IsValid reports whether name is a member of the closed Category Schema
// (not including the derived OtherStructuredField).
func IsValid(name string) bool {
	_, ok := byName[name]
	return ok
}
