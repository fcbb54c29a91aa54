package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Student Portal Gateway",
        "description": "Screen sessions, optimistic mutations and exports for the student portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Client sessions and navigation"},
        {"name": "Screens", "description": "Screen state, reloads and live updates"},
        {"name": "Mutations", "description": "Optimistic changes with rollback"},
        {"name": "Exports", "description": "Rendered screen downloads"},
        {"name": "Observability", "description": "Gateway counters"}
    ],
    "paths": {
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Open a portal session on the main menu",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Close a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Closed"},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/navigate": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Move a session to another screen",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NavigateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown screen or session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/screen": {
            "get": {
                "tags": ["Screens"],
                "summary": "Current screen state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "wait", "in": "query", "type": "string", "description": "true or a duration such as 2s"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/screen/reload": {
            "post": {
                "tags": ["Screens"],
                "summary": "Reload the current screen",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/screen/watch": {
            "get": {
                "tags": ["Screens"],
                "summary": "Websocket stream of screen states, following navigation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching protocols"}
                }
            }
        },
        "/sessions/{id}/screen/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the loaded screen",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Screen not loaded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/profile/language": {
            "put": {
                "tags": ["Mutations"],
                "summary": "Change the preferred language",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "wait", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LanguageChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Settled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already in flight", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Mutation failed and was rolled back", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/groups/{name}/membership": {
            "post": {
                "tags": ["Mutations"],
                "summary": "Join or leave a group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "wait", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/MembershipRequest"}}
                ],
                "responses": {
                    "200": {"description": "Settled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already in flight", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Mutation failed and was rolled back", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/help": {
            "post": {
                "tags": ["Mutations"],
                "summary": "Submit the need-help form",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "wait", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/HelpRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export via its signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["Observability"],
                "summary": "Gateway counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "NavigateRequest": {
            "type": "object",
            "required": ["screen"],
            "properties": {
                "screen": {"type": "string", "enum": ["main", "profile", "applications", "notifications", "progress", "groups", "schedule", "events", "help"]}
            }
        },
        "LanguageChangeRequest": {
            "type": "object",
            "required": ["language"],
            "properties": {
                "language": {"type": "string", "enum": ["English", "Spanish", "French", "German", "Mandarin", "Japanese", "Arabic"]}
            }
        },
        "MembershipRequest": {
            "type": "object",
            "properties": {
                "joined": {"type": "boolean"}
            }
        },
        "HelpRequest": {
            "type": "object",
            "required": ["email", "message"],
            "properties": {
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ScreenState": {
            "type": "object",
            "properties": {
                "phase": {"type": "string", "enum": ["UNINITIALIZED", "LOADING", "LOADED", "EMPTY", "FAILED"]},
                "items": {"type": "array", "items": {"type": "object"}},
                "error": {"$ref": "#/definitions/APIError"},
                "version": {"type": "integer"}
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
