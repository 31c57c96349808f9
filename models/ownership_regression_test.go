package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/models"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"github.com/shopspring/decimal"
)

func TestOwnershipConsistencyPipeline(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "structures_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Test Biz",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	holdco, err := models.CreateEntity(ctx, &models.NewEntity{
		Name:        "HoldCo",
		EntityType:  models.EntityTypeHoldingCompany,
		TotalShares: 1000,
	})
	if err != nil {
		t.Fatalf("CreateEntity holdco: %v", err)
	}
	opco, err := models.CreateEntity(ctx, &models.NewEntity{
		Name:        "OpCo",
		EntityType:  models.EntityTypeCorporation,
		TotalShares: 100,
	})
	if err != nil {
		t.Fatalf("CreateEntity opco: %v", err)
	}
	founder, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:       "Founder",
		PersonType: models.PersonTypeNatural,
	})
	if err != nil {
		t.Fatalf("CreateOwner founder: %v", err)
	}
	partner, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:       "Partner",
		PersonType: models.PersonTypeNatural,
	})
	if err != nil {
		t.Fatalf("CreateOwner partner: %v", err)
	}

	structure, err := models.CreateStructure(ctx, &models.NewStructure{Name: "Deal 1"})
	if err != nil {
		t.Fatalf("CreateStructure: %v", err)
	}

	// 1) percentage input derives shares from total_shares
	sixty := decimal.NewFromInt(60)
	edge1, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &sixty,
	})
	if err != nil {
		t.Fatalf("UpsertOwnershipEdge founder->holdco: %v", err)
	}
	if edge1.OwnedShares != 600 {
		t.Fatalf("expected 600 derived shares, got %d", edge1.OwnedShares)
	}

	// 2) shares input derives percentage
	shares := int64(400)
	edge2, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindParty, ID: partner.ID},
		OwnedEntityId: holdco.ID,
		Shares:        &shares,
	})
	if err != nil {
		t.Fatalf("UpsertOwnershipEdge partner->holdco: %v", err)
	}
	if !edge2.OwnershipPercentage.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40%% derived, got %s", edge2.OwnershipPercentage)
	}

	// 3) the 100% bound rejects a third owner on the same entity
	ten := decimal.NewFromInt(10)
	_, err = models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindEntity, ID: opco.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &ten,
	})
	var overErr *models.OverAllocationError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverAllocationError, got %v", err)
	}

	// 4) rewriting an existing edge excludes itself from the sum
	fifty := decimal.NewFromInt(50)
	if _, err := models.UpsertOwnershipEdge(ctx, edge1.ID, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &fifty,
	}); err != nil {
		t.Fatalf("rewrite edge1 to 50%%: %v", err)
	}

	// 5) cycle rejection: holdco owns opco, then opco may not own holdco
	hundred := decimal.NewFromInt(100)
	if _, err := models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindEntity, ID: holdco.ID},
		OwnedEntityId: opco.ID,
		Percentage:    &hundred,
	}); err != nil {
		t.Fatalf("holdco->opco: %v", err)
	}
	_, err = models.UpsertOwnershipEdge(ctx, 0, &models.NewOwnershipEdge{
		StructureId:   structure.ID,
		Owner:         models.OwnerRef{Kind: models.OwnerKindEntity, ID: opco.ID},
		OwnedEntityId: holdco.ID,
		Percentage:    &ten,
	})
	if !errors.Is(err, models.ErrCircularOwnership) {
		t.Fatalf("expected ErrCircularOwnership, got %v", err)
	}

	// 6) validation report: holdco under-allocated (90%), opco complete
	report, err := models.ValidateStructure(ctx, structure.ID)
	if err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
	if report.UnderCount != 1 || report.CompleteCount != 1 {
		t.Fatalf("expected 1 under + 1 complete, got under=%d complete=%d", report.UnderCount, report.CompleteCount)
	}
	if report.AllComplete() {
		t.Fatalf("report should not be all-complete at 90%%")
	}

	// 7) approval is blocked until allocations are complete
	if _, _, err := models.UpdateStructureStatus(ctx, structure.ID, models.StructureStatusSentForApproval); err != nil {
		t.Fatalf("send for approval: %v", err)
	}
	if _, _, err := models.UpdateStructureStatus(ctx, structure.ID, models.StructureStatusApproved); err == nil {
		t.Fatalf("approval should be blocked while holdco is under-allocated")
	}

	// 8) auto-balance fixes the under-allocation, then approval passes
	balanced, err := models.AutoBalanceOwnership(ctx, structure.ID, holdco.ID)
	if err != nil {
		t.Fatalf("AutoBalanceOwnership: %v", err)
	}
	total := decimal.Zero
	for _, e := range balanced {
		total = total.Add(e.OwnershipPercentage)
	}
	if !total.Equal(hundred) {
		t.Fatalf("auto-balance total = %s, want 100", total)
	}
	if _, _, err := models.UpdateStructureStatus(ctx, structure.ID, models.StructureStatusApproved); err != nil {
		t.Fatalf("approve after auto-balance: %v", err)
	}

	// 9) clone copies edges into an independent structure
	clone, err := models.CloneStructure(ctx, structure.ID)
	if err != nil {
		t.Fatalf("CloneStructure: %v", err)
	}
	if clone.ID == structure.ID {
		t.Fatalf("clone must get a fresh id")
	}
	if !strings.HasSuffix(clone.Name, "(Copy)") {
		t.Fatalf("clone name = %q", clone.Name)
	}
	if clone.Status != models.StructureStatusDrafting {
		t.Fatalf("clone status = %s, want Drafting", clone.Status)
	}
	cloneReport, err := models.ValidateStructure(ctx, clone.ID)
	if err != nil {
		t.Fatalf("ValidateStructure(clone): %v", err)
	}
	if len(cloneReport.Entities) != len(report.Entities) {
		t.Fatalf("clone entity count = %d, want %d", len(cloneReport.Entities), len(report.Entities))
	}

	// 10) referenced entities cannot be deleted
	if _, err := models.DeleteEntity(ctx, holdco.ID); !errors.Is(err, models.ErrStillReferenced) {
		t.Fatalf("expected ErrStillReferenced deleting holdco, got %v", err)
	}

	// 11) succession: per-giver bound and beneficiary role tagging
	seventy := decimal.NewFromInt(70)
	if _, err := models.CreateBeneficiaryEdge(ctx, &models.NewBeneficiaryEdge{
		Giver:              models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		BeneficiaryPartyId: partner.ID,
		Percentage:         seventy,
	}); err != nil {
		t.Fatalf("CreateBeneficiaryEdge: %v", err)
	}
	_, err = models.CreateBeneficiaryEdge(ctx, &models.NewBeneficiaryEdge{
		Giver:              models.OwnerRef{Kind: models.OwnerKindParty, ID: founder.ID},
		BeneficiaryPartyId: partner.ID,
		Percentage:         fifty,
	})
	if !errors.As(err, &overErr) {
		t.Fatalf("expected succession OverAllocationError, got %v", err)
	}
	tagged, err := models.GetOwner(ctx, partner.ID)
	if err != nil {
		t.Fatalf("GetOwner partner: %v", err)
	}
	hasBeneficiaryTag := false
	for _, tag := range tagged.RoleTags {
		if tag.Role == models.OwnerRoleBeneficiary {
			hasBeneficiaryTag = true
		}
	}
	if !hasBeneficiaryTag {
		t.Fatalf("partner should carry the Beneficiary role tag")
	}

	// 12) outbox rows were written for every mutation
	db := config.GetDB()
	var outboxCount int64
	if err := db.WithContext(ctx).Model(&models.OwnershipEventRecord{}).
		Where("business_id = ?", biz.ID.String()).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if outboxCount == 0 {
		t.Fatalf("expected outbox rows after edge mutations")
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("structures-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("structures-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=structures_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
