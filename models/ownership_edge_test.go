package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveShares(t *testing.T) {
	assert.Equal(t, int64(250), deriveShares(pct("25"), 1000))
	assert.Equal(t, int64(33), deriveShares(pct("33.33"), 100))
	assert.Equal(t, int64(0), deriveShares(pct("0"), 1000))
	assert.Equal(t, int64(1000), deriveShares(pct("100"), 1000))
	// rounds to nearest whole share
	assert.Equal(t, int64(2), deriveShares(pct("66.67"), 3))
}

func TestDerivePercentage(t *testing.T) {
	assert.True(t, pct("25").Equal(derivePercentage(250, 1000)))
	assert.True(t, pct("33.33").Equal(derivePercentage(1, 3)))
	assert.True(t, pct("100").Equal(derivePercentage(1000, 1000)))
	assert.True(t, decimal.Zero.Equal(derivePercentage(10, 0)))
}

func TestDerivationRoundTrip(t *testing.T) {
	// shares -> percentage -> shares is stable for whole-share inputs
	for _, shares := range []int64{1, 7, 250, 999, 1000} {
		p := derivePercentage(shares, 1000)
		assert.Equal(t, shares, deriveShares(p, 1000), "shares=%d", shares)
	}
}

func TestSplitEvenly(t *testing.T) {
	assert.Nil(t, splitEvenly(0))
	assert.Nil(t, splitEvenly(-1))

	one := splitEvenly(1)
	require.Len(t, one, 1)
	assert.True(t, pct("100").Equal(one[0]))

	three := splitEvenly(3)
	require.Len(t, three, 3)
	assert.True(t, pct("33.33").Equal(three[0]))
	assert.True(t, pct("33.33").Equal(three[1]))
	assert.True(t, pct("33.34").Equal(three[2]))

	// sum must be exactly 100.00 for any n
	for _, n := range []int{2, 3, 6, 7, 11, 13} {
		parts := splitEvenly(n)
		total := decimal.Zero
		for _, p := range parts {
			total = total.Add(p)
		}
		assert.True(t, pct("100").Equal(total), "n=%d total=%s", n, total)
	}
}

func TestWouldCreateCycle(t *testing.T) {
	// self-ownership is a trivial cycle
	assert.True(t, wouldCreateCycle(nil, 1, 1))

	// A owns B; adding B owns A closes the loop
	edges := []entityEdge{{OwnerEntityId: 1, OwnedEntityId: 2}}
	assert.True(t, wouldCreateCycle(edges, 2, 1))
	assert.False(t, wouldCreateCycle(edges, 1, 3))

	// chain A -> B -> C; C may not own A
	chain := []entityEdge{
		{OwnerEntityId: 1, OwnedEntityId: 2},
		{OwnerEntityId: 2, OwnedEntityId: 3},
	}
	assert.True(t, wouldCreateCycle(chain, 3, 1))
	assert.True(t, wouldCreateCycle(chain, 3, 2))
	assert.False(t, wouldCreateCycle(chain, 1, 3))

	// convergent ownership is legal: two parents of the same child
	convergent := []entityEdge{
		{OwnerEntityId: 1, OwnedEntityId: 3},
		{OwnerEntityId: 2, OwnedEntityId: 3},
	}
	assert.False(t, wouldCreateCycle(convergent, 2, 4))
	assert.False(t, wouldCreateCycle(convergent, 1, 2))
}

func TestResolveOwnershipFields(t *testing.T) {
	_, _, err := resolveOwnershipFields(nil, nil, 1000)
	assert.ErrorIs(t, err, ErrPercentageOrSharesRequired)

	p := pct("25")
	gotP, gotS, err := resolveOwnershipFields(&p, nil, 1000)
	require.NoError(t, err)
	assert.True(t, pct("25").Equal(gotP))
	assert.Equal(t, int64(250), gotS)

	s := int64(333)
	gotP, gotS, err = resolveOwnershipFields(nil, &s, 1000)
	require.NoError(t, err)
	assert.True(t, pct("33.3").Equal(gotP))
	assert.Equal(t, int64(333), gotS)

	// both supplied are kept verbatim, even if inconsistent
	p2, s2 := pct("50"), int64(1)
	gotP, gotS, err = resolveOwnershipFields(&p2, &s2, 1000)
	require.NoError(t, err)
	assert.True(t, pct("50").Equal(gotP))
	assert.Equal(t, int64(1), gotS)
}

func TestValidatePercentageBounds(t *testing.T) {
	ok := pct("100")
	assert.NoError(t, (&NewOwnershipEdge{Percentage: &ok}).validatePercentage())

	neg := pct("-0.01")
	assert.Error(t, (&NewOwnershipEdge{Percentage: &neg}).validatePercentage())

	over := pct("100.01")
	assert.Error(t, (&NewOwnershipEdge{Percentage: &over}).validatePercentage())

	assert.NoError(t, (&NewOwnershipEdge{}).validatePercentage())
}

func TestClassifyAllocation(t *testing.T) {
	assert.Equal(t, AllocationStateNoOwnership, classifyAllocation(decimal.Zero, 0))
	assert.Equal(t, AllocationStateUnder, classifyAllocation(pct("60"), 2))
	assert.Equal(t, AllocationStateUnder, classifyAllocation(pct("99.98"), 3))
	// tolerance window counts as complete on both sides
	assert.Equal(t, AllocationStateComplete, classifyAllocation(pct("99.99"), 3))
	assert.Equal(t, AllocationStateComplete, classifyAllocation(pct("100"), 2))
	assert.Equal(t, AllocationStateComplete, classifyAllocation(pct("100.01"), 2))
	assert.Equal(t, AllocationStateOver, classifyAllocation(pct("100.02"), 2))
}

func TestOwnerRefValidate(t *testing.T) {
	assert.NoError(t, OwnerRef{Kind: OwnerKindParty, ID: 1}.validate())
	assert.NoError(t, OwnerRef{Kind: OwnerKindEntity, ID: 7}.validate())
	assert.ErrorIs(t, OwnerRef{Kind: "Person", ID: 1}.validate(), ErrExactlyOneOwner)
	assert.ErrorIs(t, OwnerRef{Kind: OwnerKindParty}.validate(), ErrExactlyOneOwner)
}

func TestOwnerRefOfEdge(t *testing.T) {
	partyId := 4
	entityId := 9

	ref, err := OwnerRefOfEdge(&OwnershipEdge{OwnerPartyId: &partyId})
	require.NoError(t, err)
	assert.Equal(t, OwnerRef{Kind: OwnerKindParty, ID: 4}, ref)

	ref, err = OwnerRefOfEdge(&OwnershipEdge{OwnerEntityId: &entityId})
	require.NoError(t, err)
	assert.Equal(t, OwnerRef{Kind: OwnerKindEntity, ID: 9}, ref)

	_, err = OwnerRefOfEdge(&OwnershipEdge{})
	assert.ErrorIs(t, err, ErrExactlyOneOwner)

	_, err = OwnerRefOfEdge(&OwnershipEdge{OwnerPartyId: &partyId, OwnerEntityId: &entityId})
	assert.ErrorIs(t, err, ErrExactlyOneOwner)
}
