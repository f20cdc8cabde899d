package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	AllowOrigins []string
	// Realtime serves the /ws endpoint; nil leaves it unmounted.
	Realtime http.Handler
	Logger   *zap.Logger
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(Recover(logger))
	r.Use(RequestLogger(logger))
	r.Use(CORS(opts.AllowOrigins))

	r.Get("/health", h.Health)
	if opts.Realtime != nil {
		r.Handle("/ws", opts.Realtime)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/menu", func(r chi.Router) {
			r.Get("/", h.ListMenu)
			r.Post("/", h.CreateMenuItem)
			r.Get("/{itemId}", h.GetMenuItem)
			r.Put("/{itemId}", h.UpdateMenuItem)
			r.Delete("/{itemId}", h.DeleteMenuItem)
			r.Patch("/{itemId}/availability", h.SetMenuItemAvailability)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)
			r.Get("/{orderId}", h.GetOrder)
			r.Patch("/{orderId}/status", h.UpdateOrderStatus)
			r.Post("/{orderId}/cancel", h.CancelOrder)
			r.Post("/{orderId}/assign", h.AssignDriver)
			r.Post("/{orderId}/auto-assign", h.AutoAssignDriver)
			r.Patch("/{orderId}/delivery-status", h.UpdateDeliveryStatus)
			r.Get("/{orderId}/tracking", h.Tracking)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", h.ListDrivers)
			r.Post("/", h.CreateDriver)
			r.Get("/{driverId}", h.GetDriver)
			r.Put("/{driverId}", h.UpdateDriver)
			r.Delete("/{driverId}", h.DeactivateDriver)
			r.Patch("/{driverId}/availability", h.SetDriverAvailability)
			r.Post("/{driverId}/location", h.UpdateDriverLocation)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
			r.Get("/{staffId}", h.GetStaff)
			r.Put("/{staffId}", h.UpdateStaff)
			r.Delete("/{staffId}", h.DeactivateStaff)
			r.Post("/{staffId}/clock-in", h.ClockIn)
			r.Post("/{staffId}/clock-out", h.ClockOut)
			r.Get("/{staffId}/shifts", h.ListShifts)
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/orders", h.ListOrdersByUser)
			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
		})

		r.Post("/notifications/{notificationId}/read", h.MarkNotificationRead)
	})

	return r
}
