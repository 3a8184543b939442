package enrich

import (
	"fmt"

	"github.com/chainsentry/chainsentry/api/schemas"
)

const systemPrompt = "You are a senior smart contract security auditor specializing in Solidity and the Hedera network."

// Per-stage generation parameters. Explanations stay close to the input;
// test generation gets more creative room.
var (
	explainOptions = schemas.GenerationOptions{Temperature: 0.3, MaxTokens: 512}
	fixOptions     = schemas.GenerationOptions{Temperature: 0.2, MaxTokens: 1024}
	testOptions    = schemas.GenerationOptions{Temperature: 0.4, MaxTokens: 1024}
)

func explainPrompt(v schemas.Vulnerability) string {
	return fmt.Sprintf(`Explain this smart contract vulnerability in plain English for a developer:

Vulnerability ID: %s
Title: %s
Description: %s
Severity: %s
Code Snippet:
`+"```solidity\n%s\n```"+`

Provide:
1. Simple explanation of the issue
2. Potential risks if exploited
3. Real-world analogy to help understand`,
		v.ID, v.Title, v.Description, v.Severity, v.CodeSnippet)
}

func fixPrompt(v schemas.Vulnerability) string {
	return fmt.Sprintf(`Provide a fixed code solution for this vulnerability with detailed comments:

Vulnerability ID: %s
Original Code:
`+"```solidity\n%s\n```"+`

Requirements:
- Show complete fixed function/code block
- Add inline comments explaining each fix
- Preserve original functionality
- Follow Solidity best practices
- Specifically address Hedera-specific considerations if applicable`,
		v.ID, v.CodeSnippet)
}

func testPrompt(v schemas.Vulnerability) string {
	return fmt.Sprintf(`Generate a Solidity test case for this vulnerability using Hardhat:

Vulnerability ID: %s
Description: %s

Requirements:
- Test should verify vulnerability exists in original code
- Test should verify fix resolves vulnerability
- Use Hardhat testing framework
- Include setup and assertions
- Consider Hedera-specific testing requirements if applicable`,
		v.ID, v.Description)
}
