package handlers

import (
	"tenantcrm/internal/capability"
	"tenantcrm/internal/middleware"
	"tenantcrm/internal/models"

	"github.com/labstack/echo/v4"
)

// Router groups everything RegisterRoutes needs.
type Router struct {
	Auth          echo.MiddlewareFunc
	Gate          *middleware.Gate
	Health        *HealthHandlers
	Metrics       echo.HandlerFunc
	Subscriptions *SubscriptionHandlers
	Access        *AccessHandlers
	Plans         *PlanHandlers
	Roles         *RoleHandlers
	Admin         *AdminHandlers
	// Webhooks is nil when no webhook secret is configured.
	Webhooks      *WebhookHandlers
}

func (r Router) Register(e *echo.Echo) {
	e.GET("/health", r.Health.Live)
	e.GET("/health/ready", r.Health.Ready)
	if r.Metrics != nil {
		e.GET("/metrics", r.Metrics)
	}

	version := middleware.NewVersionMiddleware()
	v1 := e.Group("/v1", version.VersionHeader("v1"))
	v1.GET("/plans", r.Plans.ListPlans)
	v1.GET("/plans/compare", r.Plans.ComparePlans)
	v1.GET("/plans/:id", r.Plans.GetPlan)
	v1.GET("/capabilities", r.Access.ListCapabilities)
	if r.Webhooks != nil {
		v1.POST("/webhooks/payments", r.Webhooks.Payments)
	}

	protected := v1.Group("", r.Auth)
	protected.POST("/access/check", r.Access.Check)

	sub := protected.Group("/subscription")
	sub.GET("", r.Subscriptions.GetSubscription)
	sub.GET("/entitlement", r.Subscriptions.GetEntitlement)
	sub.GET("/payments", r.Subscriptions.ListPayments)
	billing := r.Gate.RequireGrant(capability.UserManage)
	sub.POST("/upgrade", r.Subscriptions.Upgrade, billing)
	sub.POST("/cancel", r.Subscriptions.Cancel, billing)
	sub.PUT("/auto-renew", r.Subscriptions.SetAutoRenew, billing)

	roles := protected.Group("/roles")
	roles.GET("", r.Roles.ListRoles, r.Gate.Require(capability.RoleRead))
	roles.POST("", r.Roles.CreateRole, r.Gate.Require(capability.RoleCreate))
	roles.GET("/:id/grants", r.Roles.GetRoleGrants, r.Gate.Require(capability.RoleRead))
	roles.PUT("/:id/grants", r.Roles.SetRoleGrants, r.Gate.Require(capability.RoleUpdate))

	admin := protected.Group("/admin", middleware.RequirePlatformAdmin())
	admin.PUT("/plans/:id", r.Plans.PutPlan)
	admin.DELETE("/plans/:id", r.Plans.DeletePlan)

	admin.POST("/tenants", r.Admin.CreateTenant)
	admin.GET("/tenants", r.Admin.ListTenants)
	admin.GET("/tenants/:id", r.Admin.GetTenant)
	admin.PATCH("/tenants/:id", r.Admin.UpdateTenant)
	admin.POST("/tenants/:id/suspend", r.Admin.SuspendSubscription)
	admin.POST("/tenants/:id/activate", r.Admin.ActivateSubscription)
	admin.POST("/tenants/:id/reconcile", r.Admin.ReconcileSubscription)
	admin.POST("/tenants/:id/upgrade", r.Admin.UpgradeTenant)
	admin.POST("/tenants/:id/payments", r.Admin.RecordPayment)
	admin.GET("/subscriptions", r.Admin.ListSubscriptions)

	admin.POST("/resellers", r.Admin.CreateReseller)
	admin.GET("/resellers", r.Admin.ListResellers)
	admin.GET("/resellers/:id", r.Admin.GetReseller)
	admin.POST("/resellers/:id/approve", r.Admin.ResellerStatus(models.ResellerApproved))
	admin.POST("/resellers/:id/reject", r.Admin.ResellerStatus(models.ResellerRejected))
	admin.POST("/resellers/:id/suspend", r.Admin.ResellerStatus(models.ResellerSuspended))
	admin.PUT("/resellers/:id/commission", r.Admin.UpdateCommission)
	admin.POST("/resellers/:id/tenants/:tenantId", r.Admin.AttachTenant)
	admin.GET("/resellers/:id/stats", r.Admin.ResellerStats)
}
