package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260115-090000",
		Description: "create hotel_page_data and market_data tables",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS hotel_page_data (
				hotel_id TEXT NOT NULL,
				page_url TEXT NOT NULL,
				raw_html TEXT NOT NULL DEFAULT '',
				canonical_html TEXT NOT NULL DEFAULT '',
				markdown TEXT NOT NULL DEFAULT '',
				markdown_prev TEXT NOT NULL DEFAULT '',
				checksum TEXT NOT NULL DEFAULT '',
				llm_input_checksum TEXT,
				llm_output TEXT,
				depth INTEGER NOT NULL DEFAULT 0,
				active INTEGER NOT NULL DEFAULT 1,
				is_checksum_updated INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				llm_updated TEXT,
				PRIMARY KEY (hotel_id, page_url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_hotel_page_data_hotel_active ON hotel_page_data(hotel_id, active)`,
			`CREATE TABLE IF NOT EXISTS market_data (
				hotel_id TEXT PRIMARY KEY,
				basic_information TEXT,
				contacts TEXT,
				accessibility TEXT,
				amenities TEXT,
				cleanliness_enhancements TEXT,
				food_beverage TEXT,
				guest_rooms TEXT,
				guest_services_front_desk TEXT,
				housekeeping_laundry TEXT,
				local_area_information TEXT,
				meeting_events TEXT,
				on_property_convenience TEXT,
				parking_transportation TEXT,
				policies TEXT,
				recreation_fitness TEXT,
				safety_security TEXT,
				technology_business_services TEXT,
				faq TEXT,
				other TEXT,
				other_structured TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	})
}
