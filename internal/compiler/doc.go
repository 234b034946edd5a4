// Package compiler parses CUE fixture documents into the structural
// model.
//
// Fixture programs are authored as CUE structs:
//
//	program: sample_vault: {
//		context: Withdraw: {
//			account: vault: {kind: "persistent", type: "Vault", constraints: ["mut"]}
//			account: authority: {kind: "unchecked"}
//		}
//		instruction: withdraw: {
//			context: "Withdraw"
//			params: [{name: "amount", type: "u64"}]
//			body: [...]
//		}
//	}
//
// CompileProgram uses the CUE SDK's Go API directly (not a CLI
// subprocess) and reports CompileError values carrying source positions.
// Validate performs model-consistency checks on the compiled result and
// returns all errors found rather than failing fast.
package compiler
