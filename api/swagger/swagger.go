package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Wave Alert API",
        "description": "Session reminders, digests and availability alerts",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "TriggerSecret": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Bearer <TRIGGER_SECRET>"
        }
    },
    "tags": [
        {"name": "Triggers", "description": "Scheduler entry points"},
        {"name": "Changes", "description": "Session change audit log"},
        {"name": "System", "description": "Probes and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/triggers/reminders": {
            "post": {
                "tags": ["Triggers"],
                "summary": "Run a lead-time reminder pass",
                "security": [{"TriggerSecret": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RunSummaryEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/triggers/digests/{type}": {
            "post": {
                "tags": ["Triggers"],
                "summary": "Send the morning or evening digest",
                "security": [{"TriggerSecret": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string", "enum": ["morning", "evening"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RunSummaryEnvelope"}},
                    "400": {"description": "Invalid digest type", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/triggers/refresh": {
            "post": {
                "tags": ["Triggers"],
                "summary": "Apply a fresh schedule acquisition",
                "description": "An empty body pulls the acquisition from the configured schedule feed.",
                "security": [{"TriggerSecret": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/AcquisitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RunSummaryEnvelope"}},
                    "400": {"description": "Invalid acquisition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/changes": {
            "get": {
                "tags": ["Changes"],
                "summary": "List detected session changes",
                "security": [{"TriggerSecret": []}],
                "parameters": [
                    {"name": "since", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 100}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AcquiredSession": {
            "type": "object",
            "required": ["name", "date", "startTime", "level"],
            "properties": {
                "name": {"type": "string"},
                "date": {"type": "string", "example": "2026-10-17"},
                "startTime": {"type": "string", "example": "09:00"},
                "endTime": {"type": "string", "example": "10:30"},
                "level": {"type": "string", "example": "beginner"},
                "side": {"type": "string", "enum": ["L", "R"]},
                "totalSpots": {"type": "integer"},
                "availableSpots": {"type": "integer"},
                "bookingUrl": {"type": "string"}
            }
        },
        "AcquisitionRequest": {
            "type": "object",
            "required": ["from", "to"],
            "properties": {
                "from": {"type": "string", "example": "2026-10-17"},
                "to": {"type": "string", "example": "2026-10-31"},
                "sessions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AcquiredSession"}
                }
            }
        },
        "ChangeSummary": {
            "type": "object",
            "properties": {
                "received": {"type": "integer"},
                "skipped": {"type": "integer"},
                "new": {"type": "integer"},
                "capacityIncreased": {"type": "integer"},
                "capacityDecreased": {"type": "integer"},
                "cancelled": {"type": "integer"},
                "promoted": {"type": "integer"},
                "pending": {"type": "integer"}
            }
        },
        "RunSummary": {
            "type": "object",
            "properties": {
                "trigger": {"type": "string"},
                "runId": {"type": "string"},
                "startedAt": {"type": "string", "format": "date-time"},
                "duration": {"type": "string"},
                "attempted": {"type": "integer"},
                "sent": {"type": "integer"},
                "failed": {"type": "integer"},
                "duplicates": {"type": "integer"},
                "unprocessed": {"type": "integer"},
                "changes": {"$ref": "#/definitions/ChangeSummary"}
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
        },
        "RunSummaryEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/RunSummary"},
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
