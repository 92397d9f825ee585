// Package docs serves the OpenAPI description of the transfer backend under /swagger.
// Regenerate with: swag init -g cmd/transfer_backend/main.go -o cmd/docs --parseInternal
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
        "/accounts/{id}/transactions": {
            "get": {
                "description": "Transactions where the account is source or destination, newest first.",
                "produces": ["application/json"],
                "tags": ["transfers"],
                "summary": "List the transactions of an account",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "description": "Zero based page", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TransactionHistoryResponse"}},
                    "404": {"description": "Account not found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts": {
            "post": {
                "description": "Creates a PENDING account with zero balance for an existing customer.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Open a ledger account",
                "parameters": [
                    {"description": "Account details", "name": "account", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.OpenAccountRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.AccountResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Get a ledger account",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AccountResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/status": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Change the status of a ledger account",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "New status", "name": "status", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ChangeAccountStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AccountResponse"}},
                    "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "List the balance history of an account",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "description": "Zero based page", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.HistoryPageResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/reserve": {
            "post": {
                "description": "Replays the earlier result when the operation was already applied for the correlation id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Apply a balance operation",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount and correlation id", "name": "operation", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LedgerOperationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LedgerResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Insufficient funds, no such reservation or inactive account", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/release": {
            "post": {
                "description": "Replays the earlier result when the operation was already applied for the correlation id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Apply a balance operation",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount and correlation id", "name": "operation", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LedgerOperationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LedgerResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Insufficient funds, no such reservation or inactive account", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/debit": {
            "post": {
                "description": "Replays the earlier result when the operation was already applied for the correlation id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Apply a balance operation",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount and correlation id", "name": "operation", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LedgerOperationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LedgerResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Insufficient funds, no such reservation or inactive account", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/credit": {
            "post": {
                "description": "Replays the earlier result when the operation was already applied for the correlation id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Apply a balance operation",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount and correlation id", "name": "operation", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LedgerOperationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LedgerResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Insufficient funds, no such reservation or inactive account", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/ledger/accounts/{id}/operations/{correlationID}/{operation}": {
            "get": {
                "description": "Returns 404 when the operation was never applied for the correlation id.",
                "produces": ["application/json"],
                "tags": ["ledger"],
                "summary": "Look up a previously applied ledger operation",
                "parameters": [
                    {"type": "string", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Correlation ID", "name": "correlationID", "in": "path", "required": true},
                    {"type": "string", "description": "RESERVE, RELEASE, DEBIT or CREDIT", "name": "operation", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LedgerResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/sagas": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sagas"],
                "summary": "List sagas waiting for manual reconciliation",
                "parameters": [
                    {"type": "boolean", "description": "Only sagas flagged for reconciliation", "name": "reconciliation", "in": "query", "required": true},
                    {"type": "integer", "default": 50, "description": "Maximum number of sagas", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.SagaResponse"}}}
                }
            }
        },
        "/sagas/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sagas"],
                "summary": "Get a saga by ID",
                "parameters": [
                    {"type": "string", "description": "Saga ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SagaResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/sagas/{id}/reconcile": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sagas"],
                "summary": "Retry the compensation of a flagged saga",
                "parameters": [
                    {"type": "string", "description": "Saga ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SagaResponse"}},
                    "409": {"description": "Saga is not waiting for reconciliation", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/transfers": {
            "post": {
                "description": "Runs a transfer saga. Requests repeated with the same idempotency key return the stored result.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transfers"],
                "summary": "Execute a transfer",
                "parameters": [
                    {"type": "string", "description": "Idempotency key, overrides the body field", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Transfer details", "name": "transfer", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateTransferRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/dto.TransferResult"}},
                    "201": {"description": "Completed", "schema": {"$ref": "#/definitions/dto.TransferResult"}},
                    "202": {"description": "Still processing", "schema": {"$ref": "#/definitions/dto.TransferResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Failed", "schema": {"$ref": "#/definitions/dto.TransferResult"}}
                }
            }
        },
        "/transfers/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["transfers"],
                "summary": "Get a transfer by ID",
                "parameters": [
                    {"type": "string", "description": "Transaction ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TransferResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/transfers/{id}/reversal": {
            "post": {
                "description": "Moves the funds of a completed transfer back to its source account.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transfers"],
                "summary": "Reverse a completed transfer",
                "parameters": [
                    {"type": "string", "description": "Transaction ID of the transfer to reverse", "name": "id", "in": "path", "required": true},
                    {"description": "Reversal details", "name": "reversal", "in": "body", "schema": {"$ref": "#/definitions/dto.ReverseTransferRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.TransferResult"}},
                    "409": {"description": "Transfer cannot be reversed", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/transfers/{id}/saga": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sagas"],
                "summary": "Get the saga driving a transfer",
                "parameters": [
                    {"type": "string", "description": "Transaction ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SagaResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.LedgerResult": {
            "type": "object",
            "properties": {
                "accountID": {"type": "string"},
                "operation": {"type": "string", "enum": ["RESERVE", "RELEASE", "DEBIT", "CREDIT"]},
                "previousBalance": {"type": "string", "example": "100.00"},
                "newBalance": {"type": "string", "example": "70.00"},
                "availableBalance": {"type": "string", "example": "70.00"},
                "version": {"type": "integer"},
                "replayed": {"type": "boolean"}
            }
        },
        "domain.SagaPayload": {
            "type": "object",
            "properties": {
                "amount": {"type": "string", "example": "25.50"},
                "sourceAccountID": {"type": "string"},
                "destinationAccountID": {"type": "string"},
                "currencyCode": {"type": "string", "example": "USD"}
            }
        },
        "dto.AccountResponse": {
            "type": "object",
            "properties": {
                "accountID": {"type": "string"},
                "ownerID": {"type": "string"},
                "currencyCode": {"type": "string", "example": "USD"},
                "balance": {"type": "string", "example": "100.00"},
                "availableBalance": {"type": "string", "example": "100.00"},
                "status": {"type": "string", "enum": ["PENDING", "ACTIVE", "SUSPENDED", "DORMANT", "CLOSED"]},
                "version": {"type": "integer"},
                "createdAt": {"type": "string"},
                "lastUpdatedAt": {"type": "string"}
            }
        },
        "dto.ChangeAccountStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["PENDING", "ACTIVE", "SUSPENDED", "DORMANT", "CLOSED"]}
            }
        },
        "dto.CreateTransferRequest": {
            "type": "object",
            "required": ["amount", "currencyCode", "destinationAccountID", "sourceAccountID"],
            "properties": {
                "idempotencyKey": {"type": "string"},
                "sourceAccountID": {"type": "string", "format": "uuid"},
                "destinationAccountID": {"type": "string", "format": "uuid"},
                "amount": {"type": "string", "example": "25.50", "description": "Positive, at most 4 decimal places"},
                "currencyCode": {"type": "string", "example": "USD"},
                "description": {"type": "string", "maxLength": 255}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string", "example": "VALIDATION_ERROR"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "dto.HistoryEntryResponse": {
            "type": "object",
            "properties": {
                "entryID": {"type": "string"},
                "operation": {"type": "string", "enum": ["RESERVE", "RELEASE", "DEBIT", "CREDIT"]},
                "reason": {"type": "string"},
                "correlationID": {"type": "string"},
                "amount": {"type": "string"},
                "delta": {"type": "string"},
                "previousBalance": {"type": "string"},
                "newBalance": {"type": "string"},
                "availableBalance": {"type": "string"},
                "version": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "dto.HistoryPageResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/dto.HistoryEntryResponse"}},
                "page": {"type": "integer"},
                "size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "dto.LedgerOperationRequest": {
            "type": "object",
            "required": ["amount", "correlationID"],
            "properties": {
                "amount": {"type": "string", "example": "10.00", "description": "Positive, at most 4 decimal places"},
                "correlationID": {"type": "string"},
                "reason": {"type": "string", "example": "DEPOSIT"}
            }
        },
        "dto.OpenAccountRequest": {
            "type": "object",
            "required": ["currencyCode", "ownerID"],
            "properties": {
                "ownerID": {"type": "string"},
                "currencyCode": {"type": "string", "example": "USD"}
            }
        },
        "dto.ReverseTransferRequest": {
            "type": "object",
            "properties": {
                "idempotencyKey": {"type": "string"},
                "description": {"type": "string", "maxLength": 255}
            }
        },
        "dto.SagaResponse": {
            "type": "object",
            "properties": {
                "sagaID": {"type": "string"},
                "transactionID": {"type": "string"},
                "type": {"type": "string", "enum": ["TRANSFER", "REVERSAL"]},
                "currentStep": {"type": "string"},
                "status": {"type": "string"},
                "payload": {"$ref": "#/definitions/domain.SagaPayload"},
                "errorDetail": {"type": "string"},
                "needsReconciliation": {"type": "boolean"},
                "createdAt": {"type": "string"},
                "lastUpdatedAt": {"type": "string"}
            }
        },
        "dto.TransactionHistoryResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/dto.TransferResponse"}},
                "page": {"type": "integer"},
                "size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "dto.TransferResponse": {
            "type": "object",
            "properties": {
                "transactionID": {"type": "string"},
                "referenceNumber": {"type": "string", "example": "TRF-20260314-7KQ2M9XD4A"},
                "sourceAccountID": {"type": "string"},
                "destinationAccountID": {"type": "string"},
                "amount": {"type": "string"},
                "currencyCode": {"type": "string"},
                "type": {"type": "string", "enum": ["TRANSFER", "REVERSAL"]},
                "status": {"type": "string", "enum": ["PENDING", "PROCESSING", "COMPLETED", "FAILED", "REVERSED", "CANCELLED"]},
                "description": {"type": "string"},
                "failureReason": {"type": "string"},
                "reversalOfID": {"type": "string"},
                "reversedByID": {"type": "string"},
                "createdAt": {"type": "string"},
                "completedAt": {"type": "string"}
            }
        },
        "dto.TransferResult": {
            "type": "object",
            "properties": {
                "transactionID": {"type": "string"},
                "referenceNumber": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "PROCESSING", "COMPLETED", "FAILED", "REVERSED", "CANCELLED"]},
                "failureReason": {"type": "string"},
                "completedAt": {"type": "string"},
                "replayed": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Funds Transfer API",
	Description:      "Transfers between ledger accounts, driven by compensating sagas.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
