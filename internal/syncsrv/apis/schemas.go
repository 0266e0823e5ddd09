package apis

import (
	"strings"

	json "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flowershow/contentsync/internal/common/httpx"
)

const createSiteSchemaJSON = `{
	"type": "object",
	"required": ["source"],
	"properties": {
		"userId": {"type": "string", "maxLength": 128},
		"source": {
			"type": "object",
			"required": ["kind"],
			"properties": {
				"kind": {"enum": ["github", "uploaded"]},
				"repository": {"type": "string", "maxLength": 256},
				"branch": {"type": "string", "maxLength": 256},
				"rootDir": {"type": "string", "maxLength": 512}
			},
			"additionalProperties": false
		},
		"contentInclude": {"type": "array", "items": {"type": "string"}},
		"contentExclude": {"type": "array", "items": {"type": "string"}},
		"customDomain": {"type": ["string", "null"], "maxLength": 253},
		"privacyMode": {"enum": ["PUBLIC", "PASSWORD"]},
		"password": {"type": "string"},
		"plan": {"enum": ["FREE", "PREMIUM"]}
	},
	"additionalProperties": false
}`

const publishSchemaJSON = `{
	"type": "object",
	"required": ["files"],
	"properties": {
		"files": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["path"],
				"properties": {
					"path": {"type": "string", "minLength": 1, "maxLength": 1024},
					"sha": {"type": "string", "maxLength": 128},
					"size": {"type": "integer", "minimum": 0},
					"content": {"type": "string"}
				},
				"additionalProperties": false
			}
		},
		"complete": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const syncSchemaJSON = `{
	"type": "object",
	"properties": {
		"force": {"type": "boolean"}
	},
	"additionalProperties": false
}`

// Only the fields used for routing are checked; GitHub adds fields freely.
const pushEventSchemaJSON = `{
	"type": "object",
	"required": ["ref", "repository"],
	"properties": {
		"ref": {"type": "string", "minLength": 1},
		"deleted": {"type": "boolean"},
		"repository": {
			"type": "object",
			"required": ["full_name"],
			"properties": {
				"full_name": {"type": "string", "minLength": 1}
			}
		}
	}
}`

var (
	createSiteSchema = mustCompile("create-site.json", createSiteSchemaJSON)
	publishSchema    = mustCompile("publish.json", publishSchemaJSON)
	syncSchema       = mustCompile("sync.json", syncSchemaJSON)
	pushEventSchema  = mustCompile("push-event.json", pushEventSchemaJSON)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// validateRequest checks body against schema and decodes it into v.
func validateRequest(schema *jsonschema.Schema, body []byte, v any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return httpx.ErrUnableToParseReqData()
	}
	if err := schema.Validate(doc); err != nil {
		return httpx.ErrInvalidRequest(schemaMessage(err))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return httpx.ErrUnableToParseReqData()
	}
	return nil
}

// schemaMessage reduces a validation error to its most specific cause.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return "invalid request at " + loc + ": " + ve.Message
}
