// Package stagestest holds canned model responses for every stage. The responses
// describe one coherent plan for the "Digital Wall Art Shop" opportunity built out-sourced.
package stagestest

import "github.com/jonathan/venture-planner/internal/llm/llmtest"

// Canned responses, keyed by the stage they answer.
const (
	Discover = `{
  "opportunities": [
    {
      "opportunityName": "Digital Wall Art Shop",
      "description": "Sell AI-assisted printable wall art on Etsy and Shopify to home decor buyers.",
      "potential": "High: evergreen demand and near-zero unit cost",
      "risk": "Medium: crowded marketplace",
      "quickReturn": "Short: listings can sell within weeks",
      "priority": "8"
    },
    {
      "opportunityName": "Niche Podcast Network",
      "description": "Produce automated interview podcasts for underserved professional niches, monetised by sponsors.",
      "potential": "Medium: sponsorship rates grow with audience",
      "risk": "High: audience building is slow",
      "quickReturn": "Long: sponsors need an audience first",
      "priority": "5"
    },
    {
      "opportunityName": "Local SEO Audit Service",
      "description": "Automated SEO audits and fix lists sold to local businesses on a subscription.",
      "potential": "Medium: large pool of small businesses",
      "risk": "Low: proven demand",
      "quickReturn": "Medium: first clients in one to two months",
      "priority": "7"
    }
  ]
}`

	Rank = `{
  "rankedOpportunities": [
    {
      "opportunityName": "Digital Wall Art Shop",
      "description": "Sell AI-assisted printable wall art on Etsy and Shopify to home decor buyers.",
      "potential": "High: evergreen demand and near-zero unit cost",
      "risk": "Medium: crowded marketplace",
      "quickReturn": "Short: listings can sell within weeks",
      "priority": "8",
      "rank": 1,
      "rationale": "Fastest path to revenue with minimal risk."
    },
    {
      "opportunityName": "Local SEO Audit Service",
      "description": "Automated SEO audits and fix lists sold to local businesses on a subscription.",
      "potential": "Medium: large pool of small businesses",
      "risk": "Low: proven demand",
      "quickReturn": "Medium: first clients in one to two months",
      "priority": "7",
      "rank": 2,
      "rationale": "Steady subscription revenue but slower sales cycle."
    },
    {
      "opportunityName": "Niche Podcast Network",
      "description": "Produce automated interview podcasts for underserved professional niches, monetised by sponsors.",
      "potential": "Medium: sponsorship rates grow with audience",
      "risk": "High: audience building is slow",
      "quickReturn": "Long: sponsors need an audience first",
      "priority": "5",
      "rank": 3,
      "rationale": "Highest risk and slowest return."
    }
  ]
}`

	MarketAnalysis = `{
  "demandForecast": "Steady growth in printable decor searches, strongest before holidays.",
  "competitiveLandscape": "Many small Etsy sellers; few with consistent branding or bundles.",
  "potentialRevenue": "$3k-$8k per month within the first year."
}`

	Structure = `{
  "commander": "Sets the vision and approves every major spend.",
  "okrs": [
    {
      "objective": "Launch a profitable storefront",
      "keyResults": [
        "100 listings live in 30 days",
        "First 50 sales in 60 days"
      ]
    }
  ],
  "cLevelBoard": [
    {
      "role": "CEO",
      "description": "Owns strategy and partnerships."
    },
    {
      "role": "CFO",
      "description": "Runs profit-first budgeting."
    }
  ],
  "advisoryCouncil": [
    {
      "role": "Legal",
      "description": "Checks licensing of generated art."
    }
  ],
  "aiCore": "Central orchestrator scheduling design, listing and support agents.",
  "departments": [
    {
      "name": "Design",
      "function": "Produces art collections.",
      "aiIntegration": "Image models generate drafts for review.",
      "staff": [
        {
          "role": "Art Director",
          "persona": "Curates styles and approves collections."
        }
      ],
      "kpis": [
        "Listings per week"
      ]
    }
  ],
  "projectManagementFramework": {
    "methodology": "Prince2 and Agile hybrid",
    "phases": [
      {
        "phaseName": "Initiation",
        "description": "Validate niches.",
        "keyActivities": [
          "Keyword research"
        ]
      },
      {
        "phaseName": "Execution",
        "description": "Run the shop.",
        "keyActivities": [
          "Weekly drops"
        ]
      }
    ]
  }
}`

	Strategy = `{
  "businessStrategy": {
    "marketingTactics": "Pinterest and Instagram funnels into Etsy and Shopify listings; seasonal bundles.",
    "operationalWorkflows": "Freelance designers deliver collections, a quality check runs before listing and final assurance before delivery; Stripe and PayPal payouts; helpdesk macros for support.",
    "financialForecasts": "Month 1 $500, Month 2 $900, rising to $6,000 by Month 12; 40% margin after fees."
  }
}`

	Advice = `{
  "inHouse": {
    "costBenefitAnalysis": "Full control of style and IP at higher fixed cost.",
    "resourceMetrics": "2 staff, $20k initial capital, 3 months to market.",
    "strategicRecommendation": "Choose when building a long-term brand."
  },
  "outSourced": {
    "costBenefitAnalysis": "Fast and flexible, depends on freelancer quality.",
    "resourceMetrics": "$1.5k monthly freelance budget, $500 upfront, 3 weeks to market.",
    "strategicRecommendation": "Choose to launch quickly with little capital."
  }
}`

	Chart = `{
  "chartData": [
    {
      "month": "Jan",
      "revenue": 500
    },
    {
      "month": "Feb",
      "revenue": 1000
    },
    {
      "month": "Mar",
      "revenue": 1500
    },
    {
      "month": "Apr",
      "revenue": 2000
    },
    {
      "month": "May",
      "revenue": 2500
    },
    {
      "month": "Jun",
      "revenue": 3000
    },
    {
      "month": "Jul",
      "revenue": 3500
    },
    {
      "month": "Aug",
      "revenue": 4000
    },
    {
      "month": "Sep",
      "revenue": 4500
    },
    {
      "month": "Oct",
      "revenue": 5000
    },
    {
      "month": "Nov",
      "revenue": 5500
    },
    {
      "month": "Dec",
      "revenue": 6000
    }
  ]
}`

	ActionPlan = `{
  "actionPlan": [
    {
      "categoryTitle": "Operations",
      "tasks": [
        {
          "id": "OPS-01",
          "title": "Identify and vet freelance designers",
          "description": "Shortlist five freelance designers on Upwork and score their portfolios.",
          "category": "Operations",
          "completed": false,
          "humanContribution": "Approve the result",
          "priority": "High",
          "startDate": "2025-03-03",
          "endDate": "2025-03-07",
          "dependencies": []
        },
        {
          "id": "OPS-02",
          "title": "Compile supplier database",
          "description": "Record vetted suppliers with scores and specialties.",
          "category": "Operations",
          "completed": false,
          "humanContribution": "Approve the result",
          "priority": "Medium",
          "startDate": "2025-03-08",
          "endDate": "2025-03-10",
          "dependencies": [
            "OPS-01"
          ]
        },
        {
          "id": "QA-01",
          "title": "Quality check before listing",
          "description": "Review every design against the brand checklist before it is listed.",
          "category": "Quality Assurance",
          "completed": false,
          "humanContribution": "Approve the result",
          "priority": "High",
          "startDate": "2025-03-11",
          "endDate": "2025-03-14",
          "dependencies": [
            "OPS-02"
          ]
        }
      ]
    },
    {
      "categoryTitle": "Marketing",
      "tasks": [
        {
          "id": "MKT-01",
          "title": "Open Etsy and Shopify channels",
          "description": "Set up both storefronts with shared branding.",
          "category": "Marketing",
          "completed": false,
          "humanContribution": "Approve the result",
          "priority": "High",
          "startDate": "2025-03-10",
          "endDate": "2025-03-12",
          "dependencies": []
        },
        {
          "id": "FIN-01",
          "title": "Configure payouts",
          "description": "Connect Stripe and PayPal for financial transfers.",
          "category": "Finance",
          "completed": false,
          "humanContribution": "Approve the result",
          "priority": "Medium",
          "startDate": "2025-03-10",
          "endDate": "2025-03-11",
          "dependencies": []
        }
      ]
    }
  ],
  "criticalPath": {
    "taskTitle": "Identify and vet freelance designers",
    "timeEstimate": "2 weeks"
  },
  "businessModelCanvas": {
    "keyPartners": [
      "Freelance designers",
      "Print partners"
    ],
    "keyActivities": [
      "Curating collections"
    ],
    "keyResources": [
      "Supplier database"
    ],
    "valuePropositions": [
      "Affordable on-trend wall art"
    ],
    "customerRelationships": [
      "Self-service with fast support"
    ],
    "channels": [
      "Etsy",
      "Shopify",
      "Pinterest"
    ],
    "customerSegments": [
      "Home decor buyers"
    ],
    "costStructure": [
      "Freelance fees",
      "Marketplace fees"
    ],
    "revenueStreams": [
      "Digital downloads",
      "Bundles"
    ]
  },
  "financials": {
    "capex": [
      {
        "item": "Initial freelancer deposits",
        "amount": "$500",
        "justification": "Secure the first collections."
      }
    ],
    "opex": [
      {
        "item": "Monthly freelance budget",
        "amount": "$1,500",
        "justification": "New designs every week."
      }
    ],
    "investmentOptions": [
      {
        "type": "Bootstrapping",
        "description": "Fund from early sales.",
        "amount": "$2,000"
      },
      {
        "type": "Micro-grant",
        "description": "Small creative business grant.",
        "amount": "$5,000"
      }
    ]
  }
}`

	Brief = `{
  "viabilityScore": 7,
  "keyStrengths": [
    "Near-zero unit cost",
    "Fast launch with freelancers",
    "Evergreen demand"
  ],
  "potentialRisks": [
    "Marketplace saturation",
    "Freelancer quality swings",
    "Platform fee changes"
  ],
  "timeToBreakeven": "4 months",
  "roiPotential": "High",
  "strategicRecommendation": "Go with conditions: cap freelance spend until month three sales exceed $1,500."
}`

	Ventures = `{
  "prioritizedVentures": "1. Printable wall art: low cost, fast. 2. Local SEO audits: steady, needs sales effort. 3. Niche podcasts: slow to monetise."
}`
)

// Responses maps each stage tag to its canned response.
func Responses() map[string]any {
	return map[string]any{
		"discover":            Discover,
		"rank":                Rank,
		"analyze-market":      MarketAnalysis,
		"generate-structure":  Structure,
		"build-strategy":      Strategy,
		"build-mode-advice":   Advice,
		"chart-data":          Chart,
		"extract-tasks":       ActionPlan,
		"executive-brief":     Brief,
		"prioritize-ventures": Ventures,
	}
}

// Client returns a mock answering every stage with the canned responses.
// Entries in overrides replace or add responses by stage tag.
func Client(overrides map[string]any) *llmtest.MockClient {
	responses := Responses()
	for k, v := range overrides {
		responses[k] = v
	}
	return llmtest.ByTag(responses)
}
