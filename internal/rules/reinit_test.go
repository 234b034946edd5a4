package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/testutil"
)

func TestReinitializableStateOnReinitVault(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "reinit_vault")

	findings := checkReinitializableState(g)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ir.RuleReinitializableState, f.Rule)
	assert.Equal(t, ir.SeverityCritical, f.Severity)
	assert.Equal(t, "vault.authority", f.Location)
}

func TestReinitializableStateInitExempt(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "initialize")
	assert.Empty(t, checkReinitializableState(g))
}

func TestReinitializableStateSentinelGuardExempt(t *testing.T) {
	p := testutil.NewProgram("vault").
		Context("Reinit",
			testutil.Persistent("vault", "Vault", testutil.Mut()),
			testutil.Unchecked("authority"),
		).
		Handler("reinit", "Reinit", nil,
			testutil.Guard(ir.GuardUninitialized, "vault", ""),
			testutil.Assign("vault.authority", testutil.FieldRef("authority")),
		).
		Build()

	g := buildGraph(t, p, "reinit")
	assert.Empty(t, checkReinitializableState(g))
}

func TestReinitializableStateCoversOwnerAttrs(t *testing.T) {
	for _, attr := range []string{"authority", "owner", "admin"} {
		p := testutil.NewProgram("vault").
			Context("Reinit",
				testutil.Persistent("vault", "Vault", testutil.Mut()),
				testutil.Unchecked("new_owner"),
			).
			Handler("reinit", "Reinit", nil,
				testutil.Assign("vault."+attr, testutil.FieldRef("new_owner")),
			).
			Build()

		g := buildGraph(t, p, "reinit")
		findings := checkReinitializableState(g)
		require.Len(t, findings, 1, "attr %s", attr)
		assert.Equal(t, "vault."+attr, findings[0].Location)
	}
}

func TestReinitializableStateNonOwnerAttrExempt(t *testing.T) {
	p := testutil.NewProgram("vault").
		Context("Update",
			testutil.Persistent("vault", "Vault", testutil.Mut()),
			testutil.Unchecked("caller"),
		).
		Handler("update", "Update", nil,
			testutil.Assign("vault.balance", testutil.Lit(0)),
		).
		Build()

	g := buildGraph(t, p, "update")
	assert.Empty(t, checkReinitializableState(g))
}
