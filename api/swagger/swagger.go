package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Class Record API",
        "description": "Grades, grading configs and session attendance for class schedules",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Grading Configs",
            "description": "Per class type weights and max scores"
        },
        {
            "name": "Grades",
            "description": "Class records and item scores"
        },
        {
            "name": "Attendance",
            "description": "Sessions, cancellations and overrides"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Dependency unavailable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/grading-configs": {
            "get": {
                "tags": [
                    "Grading Configs"
                ],
                "summary": "List resolved grading configs",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/grading-configs/{classType}": {
            "get": {
                "tags": [
                    "Grading Configs"
                ],
                "summary": "Resolve grading config",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "classType",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            },
            "put": {
                "tags": [
                    "Grading Configs"
                ],
                "summary": "Update grading config",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "classType",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateGradingConfigRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Grading Configs"
                ],
                "summary": "Revert grading config to defaults",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "classType",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/grades": {
            "get": {
                "tags": [
                    "Grades"
                ],
                "summary": "Class record for a schedule",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/grade-items": {
            "put": {
                "tags": [
                    "Grades"
                ],
                "summary": "Upsert or clear one score",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertScoreRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/grade-items/bulk": {
            "post": {
                "tags": [
                    "Grades"
                ],
                "summary": "Bulk upsert scores",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkScoreRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/max-scores": {
            "get": {
                "tags": [
                    "Grades"
                ],
                "summary": "List item max scores",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            },
            "put": {
                "tags": [
                    "Grades"
                ],
                "summary": "Update an item max score and rescale",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateMaxScoreRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/students/{studentId}/grades": {
            "get": {
                "tags": [
                    "Grades"
                ],
                "summary": "Grades of one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/students/{studentId}/attendance": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Attendance sheet of one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/students/{studentId}/overrides": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Apply a D/FA override",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ApplyOverrideRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/students/{studentId}/overrides/{status}": {
            "delete": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Remove a D/FA override",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "status",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "reason",
                        "in": "query",
                        "required": false,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Session view",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/cancel": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Cancel a session",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CancelSessionRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/restore": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Restore a cancelled session",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/mark": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Mark one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/MarkAttendanceRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/bulk": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Bulk mark students",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkMarkRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/students/{studentId}/cancel": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Cancel a session for one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CancelSessionRequest"
                        }
                    }
                ]
            }
        },
        "/schedules/{id}/sessions/{type}/{week}/students/{studentId}/restore": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Restore a session for one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Validation error"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "week",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        }
    },
    "definitions": {
        "UpdateGradingConfigRequest": {
            "type": "object",
            "required": [
                "components"
            ],
            "properties": {
                "components": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "name": {
                                "type": "string"
                            },
                            "weight": {
                                "type": "number"
                            },
                            "items": {
                                "type": "integer"
                            },
                            "max_score": {
                                "type": "number"
                            }
                        }
                    }
                }
            }
        },
        "UpsertScoreRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "component": {
                    "type": "string"
                },
                "item_number": {
                    "type": "integer"
                },
                "score": {
                    "type": "number"
                },
                "max_score": {
                    "type": "number"
                },
                "term": {
                    "type": "string"
                }
            },
            "required": [
                "student_id",
                "term",
                "component",
                "item_number"
            ]
        },
        "BulkScoreRequest": {
            "type": "object",
            "properties": {
                "mode": {
                    "type": "string"
                },
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/UpsertScoreRequest"
                    }
                }
            },
            "required": [
                "mode",
                "items"
            ]
        },
        "UpdateMaxScoreRequest": {
            "type": "object",
            "properties": {
                "component": {
                    "type": "string"
                },
                "item_number": {
                    "type": "integer"
                },
                "max_score": {
                    "type": "number"
                },
                "term": {
                    "type": "string"
                }
            },
            "required": [
                "component",
                "item_number",
                "term",
                "max_score"
            ]
        },
        "CancelSessionRequest": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "reason"
            ]
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "remarks": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                }
            },
            "required": [
                "student_id",
                "status"
            ]
        },
        "BulkMarkRequest": {
            "type": "object",
            "properties": {
                "mode": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/MarkAttendanceRequest"
                    }
                }
            },
            "required": [
                "mode",
                "items"
            ]
        },
        "ApplyOverrideRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "status"
            ]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
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
