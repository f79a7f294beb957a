package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/audit"
	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/timeline"
	"github.com/jhoicas/stockledger-api/internal/application/usecase"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// RouterDeps dependencias para el router. WebSocket es opcional.
type RouterDeps struct {
	AuthUC       *auth.AuthUseCase
	RoleUC       *auth.RoleUseCase
	Gate         Authorizer
	Pipeline     *inventory.Pipeline
	Availability *inventory.AvailabilityCalculator
	Ledger       *inventory.Ledger
	Timeline     *timeline.Reconstructor
	Exporter     *timeline.Exporter
	AuditUC      *audit.AuditUseCase
	ProductUC    *usecase.ProductUseCase
	WarehouseUC  *usecase.WarehouseUseCase
	UserUC       *usecase.UserUseCase
	WebSocket    fiber.Handler
	Upgrade      fiber.Handler
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	requireAuth := AuthMiddleware(deps.JWTSecret, deps.AuthUC)
	perm := func(p string) fiber.Handler { return RequirePermission(deps.Gate, p) }

	api := app.Group("/api")

	// Auth
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/logout", requireAuth, authHandler.Logout)
	api.Get("/auth/me", requireAuth, authHandler.Me)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", requireAuth)

	// Operaciones: el pipeline verifica el permiso de cada tipo.
	opHandler := NewOperationHandler(deps.Pipeline)
	protected.Post("/operations/:type", opHandler.Execute)
	protected.Patch("/records/:type/:id/status", opHandler.UpdateStatus)

	// Lecturas del ledger
	stockHandler := NewStockHandler(deps.Availability, deps.Ledger)
	protected.Get("/availability", perm(entity.PermInventoryView), stockHandler.Availability)
	protected.Get("/stock/:barcode/:warehouse/history", perm(entity.PermInventoryView), stockHandler.History)

	// Timeline
	tlHandler := NewTimelineHandler(deps.Timeline, deps.Exporter)
	protected.Get("/timeline/products/:barcode/pdf", tlHandler.ProductPDF)
	protected.Get("/timeline/products/:barcode", perm(entity.PermInventoryView), tlHandler.Product)
	protected.Get("/timeline/orders/:orderId", perm(entity.PermOrdersView), tlHandler.Order)

	// Auditoría
	auditHandler := NewAuditHandler(deps.AuditUC)
	protected.Get("/audit-logs", auditHandler.List)

	// Roles y usuarios
	roleHandler := NewRoleHandler(deps.RoleUC)
	protected.Get("/roles", roleHandler.ListRoles)
	protected.Post("/roles", roleHandler.CreateRole)
	protected.Put("/roles/:id/permissions", roleHandler.SetPermissions)
	protected.Get("/permissions", roleHandler.ListPermissions)
	protected.Put("/users/:id/role", roleHandler.AssignUserRole)

	userHandler := NewUserHandler(deps.UserUC)
	protected.Post("/users", userHandler.Create)
	protected.Get("/users", userHandler.List)
	protected.Patch("/users/:id/status", userHandler.SetStatus)

	// Catálogo
	productHandler := NewProductHandler(deps.ProductUC)
	protected.Post("/products", productHandler.Create)
	protected.Get("/products", productHandler.List)
	protected.Get("/products/:barcode", productHandler.GetByBarcode)

	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	protected.Post("/warehouses", warehouseHandler.Create)
	protected.Get("/warehouses", warehouseHandler.List)

	// Movimientos en vivo. Los navegadores no envían headers en el upgrade: se acepta ?access_token=.
	if deps.WebSocket != nil {
		handlers := []fiber.Handler{tokenFromQuery, requireAuth, perm(entity.PermInventoryView)}
		if deps.Upgrade != nil {
			handlers = append([]fiber.Handler{deps.Upgrade}, handlers...)
		}
		app.Get("/ws", append(handlers, deps.WebSocket)...)
	}
}

func tokenFromQuery(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) == "" {
		if tok := c.Query("access_token"); tok != "" {
			c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		}
	}
	return c.Next()
}
