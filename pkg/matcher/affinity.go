package matcher

import "github.com/codeready-toolchain/concierge/pkg/models"

const defaultAffinity = 0.1

// affinity maps an intent to the knowledge categories it aligns with.
var affinity = map[Intent]map[models.Category]float64{
	IntentPricing: {
		models.CategoryPricing: 1.0,
		models.CategoryFAQ:     0.7,
		models.CategoryProduct: 0.5,
	},
	IntentProductInfo: {
		models.CategoryProduct: 1.0,
		models.CategoryFAQ:     0.7,
		models.CategoryPricing: 0.4,
	},
	IntentMeasurement: {
		models.CategoryMeasurement:  1.0,
		models.CategoryFAQ:          0.7,
		models.CategoryInstallation: 0.6,
	},
	IntentInstallation: {
		models.CategoryInstallation: 1.0,
		models.CategoryFAQ:          0.7,
		models.CategoryMeasurement:  0.6,
	},
	IntentDelivery: {
		models.CategoryDelivery: 1.0,
		models.CategoryFAQ:      0.7,
		models.CategoryService:  0.4,
	},
	IntentAppointment: {
		models.CategoryService: 1.0,
		models.CategoryFAQ:     0.6,
	},
	IntentComplaint: {
		models.CategoryService: 1.0,
		models.CategoryFAQ:     0.5,
	},
	IntentGeneral: {
		models.CategoryGeneral: 1.0,
		models.CategoryFAQ:     0.8,
	},
}

func categoryAlignment(intent Intent, category models.Category) float64 {
	if v, ok := affinity[intent][category]; ok {
		return v
	}
	return defaultAffinity
}
