// Package docs is generated by swaggo/swag from the handler annotations.
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
        "/assets": {
            "get": {
                "description": "Paginated listing. With q, rows are ordered by relevance first and sortBy breaks ties.",
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "List published assets",
                "parameters": [
                    {"type": "integer", "description": "Page (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (1-100, default 10)", "name": "limit", "in": "query"},
                    {"type": "string", "description": "Full text search", "name": "q", "in": "query"},
                    {"type": "string", "description": "createdAt, views, duration or title", "name": "sortBy", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "sortOrder", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Assets fetched", "schema": {"$ref": "#/definitions/response.Response"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Upload a video and its thumbnail. Both files are stored before the record is written; nothing is left behind on failure.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Upload a new asset",
                "parameters": [
                    {"type": "string", "description": "Title (3-100 characters)", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "description": "Description (10-1000 characters)", "name": "description", "in": "formData", "required": true},
                    {"type": "boolean", "description": "Publish immediately", "name": "isPublished", "in": "formData"},
                    {"type": "file", "description": "Video file", "name": "video", "in": "formData", "required": true},
                    {"type": "file", "description": "Thumbnail image", "name": "thumbnail", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Asset created", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/response.Response"}},
                    "500": {"description": "Upload or persistence failure", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/assets/{id}": {
            "get": {
                "description": "Returns the asset with like and comment counts and records the view.",
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Get an asset",
                "parameters": [{"type": "string", "description": "Asset ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Asset fetched", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Asset not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Partial update. Only sent fields change; replaced files are removed after the record is updated.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Update an asset",
                "parameters": [
                    {"type": "string", "description": "Asset ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Title (3-100 characters)", "name": "title", "in": "formData"},
                    {"type": "string", "description": "Description (10-1000 characters)", "name": "description", "in": "formData"},
                    {"type": "file", "description": "Replacement video", "name": "video", "in": "formData"},
                    {"type": "file", "description": "Replacement thumbnail", "name": "thumbnail", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Asset updated", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Asset not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Delete an asset",
                "parameters": [{"type": "string", "description": "Asset ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Asset deleted", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Asset not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/assets/{id}/publish": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Publish or unpublish an asset",
                "parameters": [
                    {"type": "string", "description": "Asset ID", "name": "id", "in": "path", "required": true},
                    {"description": "Explicit state; omit to toggle", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/assets.PublishRequest"}}
                ],
                "responses": {
                    "200": {"description": "Publish state changed", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Asset not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/owners/{id}/assets": {
            "get": {
                "description": "The owner also sees unpublished assets.",
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "List an owner's assets",
                "parameters": [
                    {"type": "string", "description": "Owner ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Page (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (1-100, default 10)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Assets fetched", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/debug/cache": {
            "get": {
                "produces": ["application/json"],
                "tags": ["debug"],
                "summary": "Cache statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["debug"],
                "summary": "Clear the listing cache",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        }
    },
    "definitions": {
        "assets.PublishRequest": {
            "type": "object",
            "properties": {"isPublished": {"type": "boolean"}}
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Catalog Service API",
	Description:      "Video catalog with saga based asset ingestion.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
