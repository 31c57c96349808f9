package main

import (
	"context"
	"log"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/models"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"github.com/shopspring/decimal"
)

// Seeds one demo tenant with a small but complete ownership scenario:
// a holding structure, a few UBOs, compatibility rules, succession
// designations and a recurring compliance deadline.
func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Demo Family Office",
		Email: "ops@demo-family-office.example",
	})
	if err != nil {
		log.Fatalf("create business: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
	ctx = utils.SetUserNameInContext(ctx, "seed-demo")

	holdco, err := models.CreateEntity(ctx, &models.NewEntity{
		Name:         "Alpine Holding AG",
		EntityType:   models.EntityTypeHoldingCompany,
		Jurisdiction: "CH",
		TotalShares:  1000,
	})
	if err != nil {
		log.Fatalf("create holdco: %v", err)
	}
	opco, err := models.CreateEntity(ctx, &models.NewEntity{
		Name:         "Alpine Trading GmbH",
		EntityType:   models.EntityTypeCorporation,
		Jurisdiction: "DE",
		TotalShares:  25000,
	})
	if err != nil {
		log.Fatalf("create opco: %v", err)
	}
	trust, err := models.CreateEntity(ctx, &models.NewEntity{
		Name:         "Evergreen Family Trust",
		EntityType:   models.EntityTypeTrust,
		Jurisdiction: "JE",
		TotalShares:  100,
	})
	if err != nil {
		log.Fatalf("create trust: %v", err)
	}

	founder, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:       "Maria Keller",
		PersonType: models.PersonTypeNatural,
		Email:      "maria.keller@example.com",
	})
	if err != nil {
		log.Fatalf("create founder: %v", err)
	}
	heir, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:       "Jonas Keller",
		PersonType: models.PersonTypeNatural,
	})
	if err != nil {
		log.Fatalf("create heir: %v", err)
	}

	structure, err := models.CreateStructure(ctx, &models.NewStructure{
		Name:  "Keller Group Restructuring",
		Notes: "Demo scenario seeded for local development.",
	})
	if err != nil {
		log.Fatalf("create structure: %v", err)
	}

	sixty := decimal.NewFromInt(60)
	forty := decimal.NewFromInt(40)
	hundred := decimal.NewFromInt(100)

	if _, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &sixty,
	}); err != nil {
		log.Fatalf("founder -> holdco: %v", err)
	}
	if _, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindEntity, ID: trust.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &forty,
	}); err != nil {
		log.Fatalf("trust -> holdco: %v", err)
	}
	if _, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindEntity, ID: holdco.ID},
		OwnedEntityId: opco.ID,
		Percentage:    &hundred,
	}); err != nil {
		log.Fatalf("holdco -> opco: %v", err)
	}

	if _, err := models.CreateCompatibilityRule(ctx, &models.NewCompatibilityRule{
		EntityTypeA:      models.EntityTypeTrust,
		EntityTypeB:      models.EntityTypeHoldingCompany,
		RelationshipType: models.RelationshipTypeSynergistic,
		Severity:         models.RuleSeverityInfo,
		Description:      "Trust over holding company is a common estate-planning layout.",
	}); err != nil {
		log.Fatalf("create rule: %v", err)
	}

	if _, err := models.CreateBeneficiaryEdge(ctx, &models.NewBeneficiaryEdge{
		Giver:              models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		BeneficiaryPartyId: heir.ID,
		Percentage:         hundred,
		Conditions:         "Upon death or permanent incapacity.",
	}); err != nil {
		log.Fatalf("create beneficiary edge: %v", err)
	}

	if _, err := models.CreateDeadlineAlert(ctx, &models.NewDeadlineAlert{
		Name:              "Annual trust accounts filing",
		DeadlineType:      models.DeadlineTypeRecurring,
		RecurrencePattern: models.RecurrencePatternAnnual,
		AdvanceNoticeDays: 60,
		EntityIds:         []int{trust.ID},
	}); err != nil {
		log.Fatalf("create deadline alert: %v", err)
	}

	report, err := models.ValidateStructure(ctx, structure.ID)
	if err != nil {
		log.Fatalf("validate structure: %v", err)
	}

	log.Printf("seeded business %s (structure %d, completion %s%%) at %s",
		business.ID, structure.ID, report.CompletionPercentage, time.Now().Format(time.RFC3339))
}
