package protocol

import (
	"time"

	"github.com/genintake/backend/internal/domain/assessment"
)

// HereditaryCancerProtocol returns the built-in HBOC screening protocol.
// Criterion thresholds follow the NCCN-derived intake rules: early-onset
// breast cancer at or under 45, two or more relatives with breast cancer,
// any relative with ovarian cancer, male breast cancer in the family, and
// Ashkenazi ancestry combined with any breast or ovarian history.
func HereditaryCancerProtocol() *assessment.InterviewProtocol {
	return &assessment.InterviewProtocol{
		ID:        "hboc-v1",
		Specialty: "hereditary_cancer",
		Name:      "Hereditary Breast and Ovarian Cancer Screening",
		OpeningQuestions: []string{
			"Have you ever been diagnosed with breast or ovarian cancer? If so, at what age?",
			"Has anyone in your family, on either side, had breast or ovarian cancer?",
			"Do you know of any male relatives who have had breast cancer?",
			"Do you have Ashkenazi Jewish ancestry on either side of your family?",
		},
		FollowUps: map[assessment.FactKey]string{
			assessment.FactPersonalBreastCancer:     "Have you yourself ever been diagnosed with breast cancer?",
			assessment.FactPersonalOvarianCancer:    "Have you yourself ever been diagnosed with ovarian cancer?",
			assessment.FactBreastCancerAge:          "At what age were you diagnosed with breast cancer?",
			assessment.FactFamilyBreastCancerCount:  "How many of your blood relatives have had breast cancer?",
			assessment.FactFamilyOvarianCancerCount: "Have any of your blood relatives had ovarian cancer?",
			assessment.FactFamilyMaleBreastCancer:   "Have any male relatives in your family had breast cancer?",
			assessment.FactAshkenaziHeritage:        "Do you have Ashkenazi Jewish ancestry?",
		},
		DefaultFollowUp:  "Is there anything else about your personal or family cancer history you would like to share?",
		ClosingStatement: "Thank you. Based on what you shared, a genetic counselor will reach out about next steps.",
		FactWeights: map[assessment.FactKey]float64{
			assessment.FactPersonalBreastCancer:     1.0,
			assessment.FactBreastCancerAge:          0.9,
			assessment.FactFamilyBreastCancerCount:  0.8,
			assessment.FactFamilyOvarianCancerCount: 0.7,
			assessment.FactPersonalOvarianCancer:    0.6,
			assessment.FactFamilyMaleBreastCancer:   0.5,
			assessment.FactAshkenaziHeritage:        0.4,
			assessment.FactSubjectAge:               0.2,
		},
		Criteria: []assessment.CriterionConfig{
			{
				ID:        assessment.CriterionEarlyOnsetBreastCancer,
				Name:      "Breast cancer diagnosed at age ≤45",
				Threshold: 45,
			},
			{
				ID:        assessment.CriterionFamilyBreastCancer,
				Name:      "Two or more relatives with breast cancer",
				Threshold: 2,
			},
			{
				ID:        assessment.CriterionFamilyOvarianCancer,
				Name:      "Relative with ovarian cancer",
				Threshold: 1,
			},
			{
				ID:   assessment.CriterionMaleBreastCancer,
				Name: "Male breast cancer in the family",
			},
			{
				ID:   assessment.CriterionAshkenaziHistory,
				Name: "Ashkenazi ancestry with breast or ovarian history",
			},
		},
		MaxTurns:           20,
		MaxSessionDuration: time.Hour,
		RetrievalK:         4,
	}
}
