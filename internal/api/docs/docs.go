// Package docs registers the generated OpenAPI spec for swaggo/gin-swagger,
// mirroring the shape `swag init` emits from the handlers' doc comments.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "HydraDNS Management API",
        "description": "REST API for managing the HydraDNS resolution pipeline: rewrite rules, upstream servers, cache, and selection strategy.",
        "contact": {
            "name": "HydraDNS Support",
            "url": "https://github.com/jroosing/hydradns"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "1.0"
    },
    "host": "localhost:8080",
    "basePath": "/api",
    "paths": {
        "/status": {"get": {"tags": ["system"], "summary": "Host status"}},
        "/strategy": {
            "get": {"tags": ["strategy"], "summary": "Current upstream selection strategy"},
            "put": {"tags": ["strategy"], "summary": "Change the upstream selection strategy"}
        },
        "/cache/config": {
            "get": {"tags": ["cache"], "summary": "Current cache configuration"},
            "put": {"tags": ["cache"], "summary": "Replace the cache configuration"}
        },
        "/cache/clear": {"post": {"tags": ["cache"], "summary": "Evict every cache entry"}},
        "/cache/stats": {"get": {"tags": ["cache"], "summary": "Cache hit/miss counters"}},
        "/rules": {
            "get": {"tags": ["rules"], "summary": "List rewrite rules"},
            "post": {"tags": ["rules"], "summary": "Add a rewrite rule"}
        },
        "/rules/{id}": {"delete": {"tags": ["rules"], "summary": "Remove a rewrite rule"}},
        "/rules/{id}/enabled": {"put": {"tags": ["rules"], "summary": "Enable or disable a rewrite rule"}},
        "/upstreams": {
            "get": {"tags": ["upstreams"], "summary": "List upstream servers"},
            "post": {"tags": ["upstreams"], "summary": "Add an upstream server"}
        },
        "/upstreams/{id}": {
            "put": {"tags": ["upstreams"], "summary": "Replace an upstream server's configuration"},
            "delete": {"tags": ["upstreams"], "summary": "Remove an upstream server"}
        },
        "/upstreams/stats": {"get": {"tags": ["upstreams"], "summary": "Live upstream health/latency counters"}},
        "/query": {"post": {"tags": ["query"], "summary": "Resolve a name directly through the pipeline"}}
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported swagger spec metadata, consumed by
// ginSwagger.WrapHandler at /swagger/*any.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "HydraDNS Management API",
	Description:      "REST API for managing the HydraDNS resolution pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
