package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/testutil"
)

func TestMissingSignerOnWithdraw(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "withdraw")

	findings := checkMissingSigner(g)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ir.RuleMissingSigner, f.Rule)
	assert.Equal(t, ir.SeverityCritical, f.Severity)
	assert.Equal(t, "withdraw", f.Instruction)
	assert.Equal(t, "body[0]", f.Location)
	assert.Contains(t, f.Message, `"authority"`)
}

func TestMissingSignerSatisfiedBySignerField(t *testing.T) {
	g := buildGraph(t, testutil.SafeVault(), "withdraw")
	assert.Empty(t, checkMissingSigner(g))
}

func TestMissingSignerSatisfiedByRequiresSigner(t *testing.T) {
	amount := testutil.ParamRef("amount")
	p := testutil.NewProgram("vault").
		Context("Withdraw",
			testutil.Persistent("vault", "Vault", testutil.Mut(), testutil.Seeds(`"vault"`, "authority")),
			testutil.Unchecked("authority", testutil.RequiresSigner()),
			testutil.Unchecked("recipient", testutil.Mut()),
		).
		Handler("withdraw", "Withdraw", []ir.Param{{Name: "amount", Type: "u64"}},
			testutil.Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "vault"},
				[]string{`"vault"`, "vault.authority"},
				&amount,
			),
		).
		Build()

	g := buildGraph(t, p, "withdraw")
	assert.Empty(t, checkMissingSigner(g))
}

func TestMissingSignerIgnoresExternalAuthority(t *testing.T) {
	// No signer seeds: an external signer authorizes the transfer, so
	// the runtime itself verifies the signature.
	amount := testutil.ParamRef("amount")
	p := testutil.NewProgram("vault").
		Context("Withdraw",
			testutil.Persistent("vault", "Vault", testutil.Mut()),
			testutil.Unchecked("authority"),
			testutil.Unchecked("recipient", testutil.Mut()),
		).
		Handler("withdraw", "Withdraw", []ir.Param{{Name: "amount", Type: "u64"}},
			testutil.Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "authority"},
				nil,
				&amount,
			),
		).
		Build()

	g := buildGraph(t, p, "withdraw")
	assert.Empty(t, checkMissingSigner(g))
}

func TestMissingOwnershipLinkOnWithdraw(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "withdraw")

	findings := checkMissingOwnershipLink(g)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ir.RuleMissingOwnershipLink, f.Rule)
	assert.Equal(t, ir.SeverityHigh, f.Severity)
	assert.Equal(t, "vault", f.Location)
	assert.Contains(t, f.Message, `"authority"`)
	assert.Contains(t, f.Message, `"vault"`)
}

func TestMissingOwnershipLinkOnCustodyWrite(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "reinit_vault")

	findings := checkMissingOwnershipLink(g)
	require.Len(t, findings, 1)
	assert.Equal(t, "vault", findings[0].Location)
}

// The two detection shapes must not double-report the same account.
func TestMissingOwnershipLinkDedupsPerField(t *testing.T) {
	amount := testutil.ParamRef("amount")
	p := testutil.NewProgram("vault").
		Context("Drain",
			testutil.Persistent("vault", "Vault", testutil.Mut(), testutil.Seeds(`"vault"`, "authority")),
			testutil.Unchecked("authority"),
			testutil.Unchecked("recipient", testutil.Mut()),
		).
		Handler("drain", "Drain", []ir.Param{{Name: "amount", Type: "u64"}},
			testutil.Assign("vault.authority", testutil.FieldRef("authority")),
			testutil.Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "vault"},
				[]string{`"vault"`, "vault.authority"},
				&amount,
			),
		).
		Build()

	g := buildGraph(t, p, "drain")
	findings := checkMissingOwnershipLink(g)
	require.Len(t, findings, 1)
	assert.Equal(t, "vault", findings[0].Location)
}

func TestMissingOwnershipLinkSatisfiedByHasOne(t *testing.T) {
	g := buildGraph(t, testutil.SafeVault(), "withdraw")
	assert.Empty(t, checkMissingOwnershipLink(g))
}

func TestMissingOwnershipLinkSkipsInit(t *testing.T) {
	g := buildGraph(t, testutil.VulnerableVault(), "initialize")
	assert.Empty(t, checkMissingOwnershipLink(g))
}

// R2 fires even when the identity did sign: a signature proves presence,
// not ownership of the account being drained.
func TestMissingOwnershipLinkIndependentOfSigner(t *testing.T) {
	amount := testutil.ParamRef("amount")
	p := testutil.NewProgram("vault").
		Context("Withdraw",
			testutil.Persistent("vault", "Vault", testutil.Mut(), testutil.Seeds(`"vault"`, "authority")),
			testutil.Signer("authority"),
			testutil.Unchecked("recipient", testutil.Mut()),
		).
		Handler("withdraw", "Withdraw", []ir.Param{{Name: "amount", Type: "u64"}},
			testutil.Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "vault"},
				[]string{`"vault"`, "vault.authority"},
				&amount,
			),
		).
		Build()

	g := buildGraph(t, p, "withdraw")
	assert.Empty(t, checkMissingSigner(g))
	findings := checkMissingOwnershipLink(g)
	require.Len(t, findings, 1)
	assert.Equal(t, "vault", findings[0].Location)
}
