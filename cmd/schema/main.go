// schema writes JSON schema of the borsawire config file, used by editors to validate config.yml
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/borsawire/borsawire/pkg/config"
)

func main() {
	outputPath := "schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	var out io.Writer = os.Stdout
	if outputPath != "-" {
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // schema is public
		if err != nil {
			log.Fatalf("failed to create schema file: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := generate(out); err != nil {
		log.Fatalf("failed to generate schema: %v", err)
	}
	if outputPath != "-" {
		fmt.Printf("Schema generated successfully at %s\n", outputPath)
	}
}

// generate reflects config.Config using yaml names, the ones users write in config.yml
func generate(w io.Writer) error {
	r := jsonschema.Reflector{FieldNameTag: "yaml", DoNotReference: true}
	schema := r.Reflect(&config.Config{})
	schema.Title = "borsawire configuration"
	schema.Description = "news ingestion pipeline settings, re-read on every scheduler tick"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}
