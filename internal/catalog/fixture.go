package catalog

import "github.com/bryan-buckman/sftu/internal/model"

// Neighborhoods is the known neighborhood set, "All SF" first.
var Neighborhoods = []string{
	"All SF",
	"SoMa",
	"Mission",
	"Noe Valley",
	"Inner Richmond",
	"Haight",
	"North Beach",
	"Outer Sunset",
}

func unsplash(id string) string {
	return "https://images.unsplash.com/photo-" + id + "?auto=format&fit=crop&w=800&q=80"
}

// ReferenceListings returns a fresh copy of the eight built-in listings.
func ReferenceListings() []model.Listing {
	return []model.Listing{
		{
			ID:           "soma-slate-01",
			Title:        "Glassline Loft with Skyline View",
			Address:      "151 Townsend St, Unit 610",
			Neighborhood: "SoMa",
			Price:        4250,
			Beds:         1,
			Baths:        1,
			Sqft:         720,
			Photos:       []string{unsplash("1502005097973-6a7082348e28"), unsplash("1507089947368-19c1da9775ae")},
			Tags:         []string{"roof deck", "in-unit laundry", "gym"},
			Management:   "Coastal Urban Partners",
			SavesCount:   28,
			RecordSummary: model.RecordSummary{
				OpenViolations: 1,
				LastInspection: "2024-12-18",
				Note:           "Minor elevator service notice resolved within 30 days.",
			},
			Map: model.MapPoint{X: "38%", Y: "42%"},
		},
		{
			ID:           "mission-olive-02",
			Title:        "Warm Mission Flat with Patio",
			Address:      "2595 Harrison St, Apt 3",
			Neighborhood: "Mission",
			Price:        3890,
			Beds:         2,
			Baths:        1,
			Sqft:         890,
			Photos:       []string{unsplash("1505691938895-1758d7feb511"), unsplash("1501876725168-00c445821c9e")},
			Tags:         []string{"private patio", "pet friendly", "updated kitchen"},
			Management:   "Harrison Lane Living",
			SavesCount:   41,
			RecordSummary: model.RecordSummary{
				OpenViolations: 0,
				LastInspection: "2025-01-05",
				Note:           "Clean inspection record with recent fire safety update.",
			},
			Map: model.MapPoint{X: "46%", Y: "55%"},
		},
		{
			ID:           "noe-terrace-03",
			Title:        "Noe Valley Terrace Retreat",
			Address:      "22 24th St, Unit B",
			Neighborhood: "Noe Valley",
			Price:        4650,
			Beds:         2,
			Baths:        2,
			Sqft:         1080,
			Photos:       []string{unsplash("1507089947368-19c1da9775ae"), unsplash("1502005097973-6a7082348e28")},
			Tags:         []string{"garden view", "fireplace", "garage spot"},
			Management:   "Valley & Co.",
			SavesCount:   19,
			RecordSummary: model.RecordSummary{
				OpenViolations: 2,
				LastInspection: "2024-11-29",
				Note:           "Two open plumbing items scheduled for repair.",
			},
			Map: model.MapPoint{X: "40%", Y: "66%"},
		},
		{
			ID:           "richmond-bay-04",
			Title:        "Richmond Rowhouse with Bay Light",
			Address:      "744 7th Ave, Apt 2",
			Neighborhood: "Inner Richmond",
			Price:        3380,
			Beds:         1,
			Baths:        1,
			Sqft:         640,
			Photos:       []string{unsplash("1501876725168-00c445821c9e"), unsplash("1505691938895-1758d7feb511")},
			Tags:         []string{"quiet street", "bike storage", "updated bath"},
			Management:   "Pacific West Homes",
			SavesCount:   12,
			RecordSummary: model.RecordSummary{
				OpenViolations: 0,
				LastInspection: "2024-10-22",
				Note:           "No open DBI items in the last 24 months.",
			},
			Map: model.MapPoint{X: "24%", Y: "48%"},
		},
		{
			ID:           "haight-violet-05",
			Title:        "Haight Studio with Sunroom",
			Address:      "931 Ashbury St, Studio 5",
			Neighborhood: "Haight",
			Price:        2790,
			Beds:         0,
			Baths:        1,
			Sqft:         480,
			Photos:       []string{unsplash("1505693416388-ac5ce068fe85"), unsplash("1522708323590-d24dbb6b0267")},
			Tags:         []string{"sunroom", "walkable", "historic"},
			Management:   "Ashbury Collective",
			SavesCount:   9,
			RecordSummary: model.RecordSummary{
				OpenViolations: 1,
				LastInspection: "2024-09-11",
				Note:           "Roof maintenance scheduled for Q2 2025.",
			},
			Map: model.MapPoint{X: "33%", Y: "58%"},
		},
		{
			ID:           "north-beach-amber-06",
			Title:        "North Beach Corner with Harbor Air",
			Address:      "1200 Columbus Ave, Unit 12",
			Neighborhood: "North Beach",
			Price:        4525,
			Beds:         2,
			Baths:        1,
			Sqft:         920,
			Photos:       []string{unsplash("1501183638710-841dd1904471"), unsplash("1502005097973-6a7082348e28")},
			Tags:         []string{"corner unit", "water view", "storage"},
			Management:   "Harborline Property Group",
			SavesCount:   31,
			RecordSummary: model.RecordSummary{
				OpenViolations: 0,
				LastInspection: "2025-01-14",
				Note:           "Recently passed seismic safety review.",
			},
			Map: model.MapPoint{X: "55%", Y: "34%"},
		},
		{
			ID:           "sunset-lagoon-07",
			Title:        "Sunset Bungalow Near Ocean",
			Address:      "1820 Judah St, Unit 1",
			Neighborhood: "Outer Sunset",
			Price:        3180,
			Beds:         1,
			Baths:        1,
			Sqft:         710,
			Photos:       []string{unsplash("1522708323590-d24dbb6b0267"), unsplash("1505693416388-ac5ce068fe85")},
			Tags:         []string{"ocean air", "hardwood", "laundry on-site"},
			Management:   "Sunset Shore Rentals",
			SavesCount:   17,
			RecordSummary: model.RecordSummary{
				OpenViolations: 3,
				LastInspection: "2024-08-19",
				Note:           "Active facade repairs with expected completion in 60 days.",
			},
			Map: model.MapPoint{X: "15%", Y: "70%"},
		},
		{
			ID:           "richmond-cypress-08",
			Title:        "Clement Street Studio over the Bakery",
			Address:      "415 Clement St, Studio 2",
			Neighborhood: "Inner Richmond",
			Price:        2950,
			Beds:         0,
			Baths:        1,
			Sqft:         430,
			Photos:       []string{unsplash("1522708323590-d24dbb6b0267"), unsplash("1501183638710-841dd1904471")},
			Tags:         []string{"transit nearby", "bright", "shared yard", "laundry on-site"},
			Management:   "Clement Row Properties",
			SavesCount:   6,
			RecordSummary: model.RecordSummary{
				OpenViolations: 1,
				LastInspection: "2024-12-02",
				Note:           "Smoke detector notice awaiting re-inspection.",
			},
			Map: model.MapPoint{X: "22%", Y: "45%"},
		},
	}
}
