// Command arkaiv serves the AI tools catalog and compiles the daily digest.
//
// Examples:
//
//	export MONGODB_URI=mongodb://localhost:27017
//	export HUGGINGFACE_API_KEY=...   # optional, abstractive summaries
//	export OPENAI_API_KEY=...        # optional, chat fallback
//	arkaiv serve
//
//	arkaiv tools import scraped.jsonl
//	arkaiv digest generate --markdown
//	arkaiv digest prune --keep-days 14
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
