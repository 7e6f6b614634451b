// Package docs registers the Freeway OpenAPI document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-Api-Key"},
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Gateway health and cache counts",
                "security": [],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}}
            }
        },
        "/chat/completions": {
            "post": {
                "tags": ["chat"],
                "summary": "Create a chat completion",
                "description": "model is \"free\" (default), \"paid\", or a concrete model id. Requires a project API key.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/core.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/core.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/core.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/core.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/core.ErrorBody"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/core.ErrorBody"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/core.ErrorBody"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/core.ErrorBody"}}
                }
            }
        },
        "/model/free": {
            "get": {"tags": ["models"], "summary": "Selected free model", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.ModelInfo"}}, "503": {"description": "Service Unavailable"}}}
        },
        "/model/paid": {
            "get": {"tags": ["models"], "summary": "Selected paid model", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.ModelInfo"}}, "503": {"description": "Service Unavailable"}}}
        },
        "/models/free": {
            "get": {"tags": ["models"], "summary": "Ranked free catalog models", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.ModelsList"}}}}
        },
        "/models/paid": {
            "get": {"tags": ["models"], "summary": "Ranked paid catalog models", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.ModelsList"}}}}
        },
        "/v1/models": {
            "get": {"tags": ["models"], "summary": "Validated models of every provider", "produces": ["application/json"],
                "parameters": [{"in": "query", "name": "provider", "type": "string", "description": "Filter by provider name"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/v1/providers": {
            "get": {"tags": ["models"], "summary": "Providers with benchmark ranking", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/admin/projects": {
            "get": {"tags": ["admin"], "summary": "List projects", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["admin"], "summary": "Create a project and its API key", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/admin/projects/{id}": {
            "get": {"tags": ["admin"], "summary": "Get a project", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "patch": {"tags": ["admin"], "summary": "Update a project", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["admin"], "summary": "Deactivate a project", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/admin/projects/{id}/rotate-key": {
            "post": {"tags": ["admin"], "summary": "Replace a project's API key", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/admin/model/free": {
            "put": {"tags": ["admin"], "summary": "Pin the free model", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/admin/model/paid": {
            "put": {"tags": ["admin"], "summary": "Pin the paid model", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/admin/analytics/summary": {
            "get": {"tags": ["admin"], "summary": "Usage totals for today, this month and all time", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "core.Message": {
            "type": "object",
            "properties": {"role": {"type": "string"}, "content": {"type": "string"}}
        },
        "core.ChatRequest": {
            "type": "object",
            "required": ["messages"],
            "properties": {
                "model": {"type": "string", "default": "free"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/core.Message"}},
                "temperature": {"type": "number", "minimum": 0, "maximum": 2},
                "max_tokens": {"type": "integer", "minimum": 1},
                "top_p": {"type": "number"}
            }
        },
        "core.ChatResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "object": {"type": "string"},
                "created": {"type": "integer"},
                "model": {"type": "string"},
                "choices": {"type": "array", "items": {"type": "object"}},
                "usage": {"type": "object"}
            }
        },
        "core.ErrorBody": {
            "type": "object",
            "properties": {"error": {"type": "object", "properties": {"type": {"type": "string"}, "message": {"type": "string"}}}}
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "service": {"type": "string"},
                "version": {"type": "string"},
                "free_models_count": {"type": "integer"},
                "paid_models_count": {"type": "integer"},
                "provider_models_count": {"type": "integer"},
                "active_projects": {"type": "integer"}
            }
        },
        "server.ModelInfo": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string"},
                "model_name": {"type": "string"},
                "context_length": {"type": "integer"},
                "rank": {"type": "integer"}
            }
        },
        "server.ModelsList": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/server.ModelInfo"}},
                "total_count": {"type": "integer"},
                "last_updated": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Freeway API",
	Description:      "LLM gateway routing chat completions across free providers with a paid fallback.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
