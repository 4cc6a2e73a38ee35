package ensemble

import "ProspectScanner/internal/domain"

// SeedExamples are hand-written prospects that anchor training before the store has data.
func SeedExamples() []domain.LabeledProspect {
	return []domain.LabeledProspect{
		{Positive: true, Prospect: domain.Prospect{
			URL:              "https://greenfund.org",
			OrganizationName: "Green Innovation Fund",
			Emails:           []string{"contact@greenfund.org"},
			Phones:           []string{"+1-555-0123"},
			ContentText: "Our foundation supports environmental technology initiatives and sustainable innovation projects. " +
				"We have donated over $2M to clean energy startups and ocean conservation programs.",
		}},
		{Positive: true, Prospect: domain.Prospect{
			URL:              "https://techcorp.com",
			OrganizationName: "TechCorp Industries",
			Emails:           []string{"csr@techcorp.com"},
			Phones:           []string{"+1-555-0456"},
			ContentText: "TechCorp is committed to corporate social responsibility and environmental sustainability. " +
				"We partner with NGOs on climate technology solutions and have an annual CSR budget of $5M.",
		}},
		{Positive: true, Prospect: domain.Prospect{
			URL:              "https://ecofoundation.org",
			OrganizationName: "Eco Foundation",
			Emails:           []string{"grants@ecofoundation.org"},
			Phones:           []string{"+1-555-0789"},
			ContentText: "EcoFoundation focuses on marine conservation and ocean cleanup initiatives. " +
				"We support innovative approaches to environmental challenges including AI and drone technology.",
		}},
		{Positive: false, Prospect: domain.Prospect{
			URL:              "https://pizzaplace.com",
			OrganizationName: "Pizza Palace",
			Emails:           []string{"info@pizzaplace.com"},
			Phones:           []string{"+1-555-1111"},
			ContentText:      "Welcome to our restaurant! We serve the best pizza in town. Check out our menu and make a reservation today.",
		}},
		{Positive: false, Prospect: domain.Prospect{
			URL:              "https://johnsblog.com",
			OrganizationName: "Johns Blog",
			Emails:           []string{"john@personalblog.com"},
			ContentText:      "Personal blog about my daily life and thoughts. No business or organizational content here.",
		}},
	}
}

// LabelStored marks stored prospects positive when their final heuristic score exceeds threshold.
func LabelStored(prospects []domain.Prospect, threshold float64) []domain.LabeledProspect {
	out := make([]domain.LabeledProspect, len(prospects))
	for i, p := range prospects {
		out[i] = domain.LabeledProspect{Prospect: p, Positive: p.Scores.Final > threshold}
	}
	return out
}
