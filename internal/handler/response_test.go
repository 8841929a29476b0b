package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efreitasn/marketboard/internal/service"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content type and status code", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"status": "ok"}

		WriteJSON(w, http.StatusOK, data)

		if got := w.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if w.Code != http.StatusOK {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]string
		if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if result["status"] != "ok" {
			t.Errorf("body status = %q, want %q", result["status"], "ok")
		}
	})

	t.Run("writes 201 Created", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"_id": "42"}

		WriteJSON(w, http.StatusCreated, data)

		if w.Code != http.StatusCreated {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusCreated)
		}
	})

	t.Run("encodes struct with camelCase tags", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, dailyVolumeResponse{Date: "2024-01-01", Volume: 5})

		var raw map[string]any
		if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if raw["date"] != "2024-01-01" {
			t.Errorf("date = %v, want %q", raw["date"], "2024-01-01")
		}
		if raw["volume"] != 5.0 {
			t.Errorf("volume = %v, want %v", raw["volume"], 5)
		}
	})

	t.Run("encodes null fields", func(t *testing.T) {
		type resp struct {
			Price *float64 `json:"price"`
		}
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, resp{Price: nil})

		var raw map[string]any
		if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if raw["price"] != nil {
			t.Errorf("price = %v, want nil", raw["price"])
		}
	})
}

func TestWriteResult(t *testing.T) {
	t.Run("success omits message", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteResult(w, http.StatusOK, "ignored")

		if w.Code != http.StatusOK {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"success":true}` {
			t.Errorf("body = %s, want {\"success\":true}", got)
		}
	})

	t.Run("failure carries message", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteResult(w, http.StatusBadRequest, "Not enough quantity")

		if w.Code != http.StatusBadRequest {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if got := w.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}

		var resp resultResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if resp.Success {
			t.Error("success = true, want false")
		}
		if resp.Message != "Not enough quantity" {
			t.Errorf("message = %q, want %q", resp.Message, "Not enough quantity")
		}
	})

	t.Run("writes 404", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteResult(w, http.StatusNotFound, "listing not found")

		if w.Code != http.StatusNotFound {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func newJSONRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestParseJSON(t *testing.T) {
	t.Run("decodes buy request", func(t *testing.T) {
		r := newJSONRequest(`{"itemID":"abc","quantity":2,"buyer":"alice"}`, "application/json")

		var req service.BuyRequest
		if err := ParseJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.ItemID != "abc" || req.Quantity != 2 || req.Buyer != "alice" {
			t.Errorf("decoded %+v", req)
		}
	})

	t.Run("accepts content type with charset", func(t *testing.T) {
		r := newJSONRequest(`{"itemName":"Potion","itemPrice":10.5,"itemQuantity":3}`, "application/json; charset=utf-8")

		var req service.AddListingRequest
		if err := ParseJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.ItemPrice != 10.5 {
			t.Errorf("itemPrice = %v, want %v", req.ItemPrice, 10.5)
		}
	})

	t.Run("maps userCustomer to buyer on history entries", func(t *testing.T) {
		r := newJSONRequest(`{"itemName":"Potion","itemPrice":10,"amountSold":1,"userCustomer":"bob"}`, "application/json")

		var req service.RecordTradeRequest
		if err := ParseJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Buyer != "bob" {
			t.Errorf("buyer = %q, want %q", req.Buyer, "bob")
		}
	})

	t.Run("rejects missing content type", func(t *testing.T) {
		r := newJSONRequest(`{"itemID":"abc"}`, "")

		var req service.BuyRequest
		err := ParseJSON(r, &req)
		if err == nil {
			t.Fatal("expected error for missing Content-Type")
		}
		if !strings.Contains(err.Error(), "Content-Type") {
			t.Errorf("error = %q, should mention Content-Type", err.Error())
		}
	})

	t.Run("rejects wrong content type", func(t *testing.T) {
		r := newJSONRequest(`{"itemID":"abc"}`, "text/plain")

		var req service.BuyRequest
		if err := ParseJSON(r, &req); err == nil {
			t.Fatal("expected error for wrong Content-Type")
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		r := newJSONRequest(`{invalid json}`, "application/json")

		var req service.BuyRequest
		if err := ParseJSON(r, &req); err == nil {
			t.Fatal("expected error for malformed JSON")
		}
	})

	t.Run("rejects unknown fields on buy request", func(t *testing.T) {
		// "price" is not part of a purchase; the listing fixes the price.
		r := newJSONRequest(`{"itemID":"abc","quantity":1,"buyer":"alice","price":0.01}`, "application/json")

		var req service.BuyRequest
		err := ParseJSON(r, &req)
		if err == nil {
			t.Fatal("expected error for unknown field")
		}
		if !strings.Contains(err.Error(), "price") {
			t.Errorf("error = %q, should name the field", err.Error())
		}
	})

	t.Run("rejects quantity of the wrong type", func(t *testing.T) {
		r := newJSONRequest(`{"itemID":"abc","quantity":"two","buyer":"alice"}`, "application/json")

		var req service.BuyRequest
		if err := ParseJSON(r, &req); err == nil {
			t.Fatal("expected error for string quantity")
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		r := newJSONRequest("", "application/json")

		var req service.AddListingRequest
		if err := ParseJSON(r, &req); err == nil {
			t.Fatal("expected error for empty body")
		}
	})
}
