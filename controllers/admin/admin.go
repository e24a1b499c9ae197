package adminController

import (
	"github.com/gofiber/fiber/v2"

	"qbank/cache"
	"qbank/middleware"
	"qbank/practice"
	"qbank/stats"
	"qbank/store"
)

// Controller serves the operational surface: cache introspection, manual
// invalidation and usage statistics
type Controller struct {
	Cache   *cache.HybridCache
	Usage   *stats.Aggregator
	Store   *store.Store
	Manager *practice.Manager
}

func New(hybrid *cache.HybridCache, usage *stats.Aggregator, st *store.Store, manager *practice.Manager) *Controller {
	return &Controller{Cache: hybrid, Usage: usage, Store: st, Manager: manager}
}

// CacheInfo reports both tiers' counters and configuration
func (ctl *Controller) CacheInfo(c *fiber.Ctx) error {
	info := ctl.Cache.Info()
	info["live_sessions"] = ctl.Manager.Live()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Cache info fetched!", info)
}

// CacheKeyInfo reports one logical key's presence per tier and its TTL
func (ctl *Controller) CacheKeyInfo(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Query parameter key is required!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Cache key info fetched!", ctl.Cache.KeyInfo(key))
}

// RefreshCache drops every cached entry and eagerly rebuilds the aggregates
// plus the hottest banks
func (ctl *Controller) RefreshCache(c *fiber.Ctx) error {
	cleared := ctl.Cache.RefreshAll(c.Context())
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Cache refreshed!", fiber.Map{
		"clearedEntries": cleared,
	})
}

// ExpireCache removes one key or a whole namespace from both tiers
func (ctl *Controller) ExpireCache(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedExpireCache").(*struct {
		Key       string `json:"key"`
		Namespace string `json:"namespace"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if reqData.Key != "" {
		existed := ctl.Cache.Delete(reqData.Key)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Cache key expired!", fiber.Map{
			"existed": existed,
		})
	}

	removed := ctl.Cache.DeleteByPattern(reqData.Namespace)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Cache namespace expired!", fiber.Map{
		"removedEntries": removed,
	})
}

// UsageStats returns the persisted per-bank totals alongside the live
// counters not yet flushed
func (ctl *Controller) UsageStats(c *fiber.Ctx) error {
	totals, err := ctl.Store.UsageTotals(c.Context())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Usage totals are unavailable right now!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Usage stats fetched!", fiber.Map{
		"persisted": totals,
		"pending":   ctl.Usage.Snapshot(),
	})
}

// FlushUsage forces an immediate counter flush instead of waiting for the
// scheduler
func (ctl *Controller) FlushUsage(c *fiber.Ctx) error {
	if err := ctl.Usage.Flush(c.Context(), ctl.Store); err != nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Usage flush failed!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Usage counters flushed!", nil)
}
