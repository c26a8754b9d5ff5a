//go:build ignore

// Package main generates synthetic markdown documentation for benchmarking
// internal/chunk and internal/ingest.
// Usage: go run scripts/generate-test-corpus.go -docs 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var mdTemplate = `# %s

## Overview

%s provides comprehensive %s functionality for modern applications.

## Features

- **Fast Processing**: Optimized for performance
- **Type Safety**: Full TypeScript support
- **Extensible**: Plugin architecture
- **Well Documented**: Comprehensive API docs

## Installation

` + "```bash" + `
npm install %s
` + "```" + `

## Quick Start

` + "```js" + `
import { %s } from '%s'

const client = new %s()
const result = await client.process(data)
console.log(result)
` + "```" + `

## Configuration

| Option | Type | Default | Description |
|--------|------|---------|-------------|
| timeout | number | 30 | Request timeout in seconds |
| retries | number | 3 | Number of retry attempts |
| debug | boolean | false | Enable debug logging |

## API Reference

### %s.create(options)

Creates a new %s instance.

**Parameters:**
- ` + "`options`" + ` - Configuration options

**Returns:** %s instance

### %s.process(data)

Processes the input data.

**Parameters:**
- ` + "`data`" + ` - Input data to process

**Returns:** Processed result

## Error Handling

` + "```js" + `
try {
  const result = await client.process(data)
} catch (err) {
  if (err instanceof ValidationError) {
    // handle validation error
  } else if (err instanceof TimeoutError) {
    // handle timeout
  }
}
` + "```" + `

## License

MIT License.
`

var (
	nouns = []string{
		"Handler", "Manager", "Service", "Controller", "Processor",
		"Engine", "Client", "Server", "Worker", "Factory",
		"Builder", "Parser", "Validator", "Formatter", "Converter",
		"Cache", "Store", "Queue", "Pool", "Buffer",
		"Router", "Dispatcher", "Scheduler", "Monitor", "Logger",
		"Auth", "Session", "Token", "Config",
	}
	domains = []string{
		"authentication", "authorization", "caching", "logging", "monitoring",
		"messaging", "scheduling", "routing", "parsing", "validation",
		"serialization", "compression", "encryption", "hashing", "indexing",
		"searching", "filtering", "sorting", "pagination", "batching",
	}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d documents in %s...\n", *numDocs, *outputDir)

	for i := 0; i < *numDocs; i++ {
		if err := generateDoc(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating document %d: %v\n", i, err)
		}
	}

	fmt.Printf("Generated %d documents.\n", *numDocs)
}

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func generateDoc(index int) error {
	noun := randomWord(nouns)
	domain := randomWord(domains)
	pkgName := strings.ToLower(noun)

	content := fmt.Sprintf(mdTemplate,
		noun,
		noun, domain,
		pkgName,
		noun, pkgName, noun,
		noun, noun, noun,
		noun,
	)

	filename := filepath.Join(*outputDir, fmt.Sprintf("%s_%d.md", pkgName, index))
	return os.WriteFile(filename, []byte(content), 0644)
}
