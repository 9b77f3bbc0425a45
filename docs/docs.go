// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Create an account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Email already registered"}, "422": {"description": "Validation failed"}}
            }
        },
        "/auth/signin": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in with email and password",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/groups": {
            "get": {"tags": ["groups"], "summary": "Search public groups", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["groups"], "summary": "Create a group", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/groups/{id}/join": {
            "post": {"tags": ["groups"], "summary": "Join a group", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Joined"}, "409": {"description": "Group full or already a member"}}}
        },
        "/sessions/{id}/attendance": {
            "put": {"tags": ["sessions"], "summary": "Set RSVP status", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "StudySync API",
	Description:      "Study groups with chat, shared resources, sessions and a realtime change feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
