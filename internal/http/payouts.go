package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type createPayoutReq struct {
	PaymentID      int64  `json:"payment_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type processPendingReq struct {
	BatchSize int `json:"batch_size"`
}

func feeHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		amount, err := strconv.ParseInt(c.QueryParam("amount"), 10, 64)
		if err != nil || amount < 0 {
			return badRequest(c, "invalid amount")
		}
		var serviceID *int64
		if raw := strings.TrimSpace(c.QueryParam("service_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return badRequest(c, "invalid service_id")
			}
			serviceID = &id
		}

		platformFee := svc.CalculatePlatformFee(c.Request().Context(), amount, serviceID)
		return c.JSON(http.StatusOK, map[string]any{
			"amount":       amount,
			"platform_fee": platformFee,
			"net_amount":   amount - platformFee,
		})
	}
}

func createPayoutHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createPayoutReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}
		if req.PaymentID <= 0 {
			return badRequest(c, "payment_id is required")
		}
		key := strings.TrimSpace(req.IdempotencyKey)
		if key == "" {
			key = strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
		}

		p, created, err := svc.Settle(c.Request().Context(), req.PaymentID, key)
		if err != nil {
			return writeError(c, err)
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return c.JSON(status, p)
	}
}

func retryPayoutHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := svc.RetryPayout(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func receiptHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, err := svc.GeneratePayoutReceipt(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, rc)
	}
}

func payoutEventsHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		events, err := svc.PayoutEvents(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"payout_id": c.Param("id"), "events": events})
	}
}

func processPendingHandler(svc PayoutService, defaultBatch int) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req processPendingReq
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&req); err != nil {
				return badRequest(c, "bad request")
			}
		}
		if req.BatchSize < 0 || req.BatchSize > 500 {
			return badRequest(c, "batch_size must be between 1 and 500")
		}
		if req.BatchSize == 0 {
			req.BatchSize = defaultBatch
		}

		res, err := svc.ProcessPendingPayouts(c.Request().Context(), req.BatchSize)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}
