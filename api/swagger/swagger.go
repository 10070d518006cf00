package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Routine API",
        "description": "Class routine generation, repair and export",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Routines", "description": "Weekly routine generation and maintenance"},
        {"name": "Exports", "description": "PDF and CSV routine documents"}
    ],
    "paths": {
        "/routines": {
            "get": {
                "tags": ["Routines"],
                "summary": "List routines",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "shift", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/routines/generate": {
            "post": {
                "tags": ["Routines"],
                "summary": "Generate a routine proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRoutineRequest"}}],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/routines/save": {
            "post": {
                "tags": ["Routines"],
                "summary": "Persist a routine proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveRoutineRequest"}}],
                "responses": {
                    "201": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal clashes with stored routines"},
                    "410": {"description": "Proposal expired"}
                }
            }
        },
        "/routines/batch": {
            "post": {
                "tags": ["Routines"],
                "summary": "Generate routines for several teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/routines/batch/jobs": {
            "post": {
                "tags": ["Routines"],
                "summary": "Queue a batch generation job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue unavailable"}
                }
            }
        },
        "/routines/batch/jobs/{id}": {
            "get": {
                "tags": ["Routines"],
                "summary": "Batch job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown job"}}
            }
        },
        "/routines/refactor": {
            "post": {
                "tags": ["Routines"],
                "summary": "Repair stored routines",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/routines/{id}": {
            "get": {
                "tags": ["Routines"],
                "summary": "Get a routine",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Routines"],
                "summary": "Delete a routine",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/routines/{id}/conflicts": {
            "get": {
                "tags": ["Routines"],
                "summary": "Audit a routine for clashes",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/routines/{id}/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export a routine",
                "produces": ["application/pdf", "text/csv", "application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv"]},
                    {"name": "link", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "File"}, "201": {"description": "Signed link"}}
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a stored export",
                "produces": ["application/pdf", "text/csv"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File"}, "403": {"description": "Invalid link"}, "404": {"description": "Expired"}}
            }
        }
    },
    "definitions": {
        "RoutineTarget": {
            "type": "object",
            "required": ["department", "semester", "shift", "group"],
            "properties": {
                "department": {"type": "string"},
                "semester": {"type": "string"},
                "shift": {"type": "string", "enum": ["1st", "2nd"]},
                "group": {"type": "string"}
            }
        },
        "LoadItem": {
            "type": "object",
            "required": ["subject", "teacher"],
            "properties": {
                "subject": {"type": "string"},
                "subjectCode": {"type": "string"},
                "teacher": {"type": "string"},
                "theoryCount": {"type": "integer"},
                "labCount": {"type": "integer"}
            }
        },
        "GenerateRoutineRequest": {
            "type": "object",
            "required": ["target", "loads"],
            "properties": {
                "target": {"$ref": "#/definitions/RoutineTarget"},
                "loads": {"type": "array", "items": {"$ref": "#/definitions/LoadItem"}},
                "combineClasses": {"type": "boolean"},
                "reduceLab": {"type": "boolean"},
                "linkedGroups": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer"}
            }
        },
        "SaveRoutineRequest": {
            "type": "object",
            "required": ["proposalId"],
            "properties": {"proposalId": {"type": "string"}}
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
