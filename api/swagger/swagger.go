package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course CMS API",
        "description": "Back office for course enrollment, groups and payment schedules",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Calls", "description": "Enrollment windows per course"},
        {"name": "Enrollments", "description": "Student applications to calls"},
        {"name": "Groups", "description": "Course groups and memberships"},
        {"name": "Payments", "description": "Monthly payment schedules"},
        {"name": "Exports", "description": "CSV/PDF report generation"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/calls": {
            "get": {
                "tags": ["Calls"],
                "summary": "List calls",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calls"],
                "summary": "Create call",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCallRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/capacity": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get call capacity",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calls/{id}/students/{studentId}": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll student in call",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled or capacity reached"}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Withdraw student from call",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/calls/{id}/enrollments/bulk": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Bulk enroll students",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkEnrollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups": {
            "get": {
                "tags": ["Groups"],
                "summary": "List groups",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Groups"],
                "summary": "Create group",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGroupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{id}/finish": {
            "post": {
                "tags": ["Groups"],
                "summary": "Finish group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Group already finished"}
                }
            }
        },
        "/group-students/{id}/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get payment schedule",
                "description": "Generates the monthly schedule on first access",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/confirm": {
            "post": {
                "tags": ["Payments"],
                "summary": "Confirm payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/statistics": {
            "get": {
                "tags": ["Payments"],
                "summary": "Payment statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Generate report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateCallRequest": {
            "type": "object",
            "required": ["course_id", "capacity"],
            "properties": {
                "course_id": {"type": "string"},
                "capacity": {"type": "integer"},
                "application_deadline": {"type": "string", "format": "date-time"}
            }
        },
        "BulkEnrollRequest": {
            "type": "object",
            "required": ["student_ids"],
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CreateGroupRequest": {
            "type": "object",
            "required": ["course_lecturer_id", "classroom", "start_date"],
            "properties": {
                "course_lecturer_id": {"type": "string"},
                "classroom": {"type": "string"},
                "start_date": {"type": "string", "format": "date-time"},
                "student_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["type", "format"],
            "properties": {
                "type": {"type": "string", "enum": ["payments", "overdue", "enrollments"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
