package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/xid"
)

const defaultStockLogLimit = 100

// logStock records a stock movement. The movement itself already happened, so
// a failed write is only logged.
func (s *Service) logStock(ctx context.Context, item domain.CatalogItem, lokasi string, delta int, reason string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.AppendStockLog(ctx, domain.StockLog{
		ID:        xid.New("stocklog"),
		Kind:      item.Kind,
		ItemID:    item.ID,
		Lokasi:    lokasi,
		Delta:     delta,
		Reason:    reason,
		Actor:     actor.Username,
		CreatedAt: s.now(),
	})
	if err != nil {
		log.Printf("[service] WARN: stock log item=%s lokasi=%s delta=%d: %v", item.ID, lokasi, delta, err)
	}
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (int, error) {
	const title = "Adjust stock"

	if _, err := requireAdmin(ctx); err != nil {
		return 0, s.fail(title, err)
	}
	lokasi := domain.NormalizeLokasi(req.Lokasi)
	reason := strings.TrimSpace(req.Reason)
	switch {
	case !domain.IsStockLocation(lokasi):
		return 0, s.fail(title, validationf("unknown stock location %q", req.Lokasi))
	case req.Delta == 0:
		return 0, s.fail(title, validationf("delta must not be zero"))
	case reason == "":
		return 0, s.fail(title, validationf("reason is required"))
	}
	item, err := s.stockedItem(ctx, req.ItemID)
	if err != nil {
		return 0, s.fail(title, err)
	}

	qty, err := s.repo.AdjustStock(ctx, item.ID, lokasi, req.Delta)
	if err != nil {
		return 0, s.fail(title, err)
	}
	s.logStock(ctx, item, lokasi, req.Delta, reason)
	s.publisher.Publish(realtime.TableStock, lokasi, map[string]any{"item_id": item.ID, "delta": req.Delta, "qty": qty})
	s.succeed(title, "%s at %s is now %d", item.Name, lokasi, qty)
	return qty, nil
}

func (s *Service) TransferStock(ctx context.Context, req domain.StockTransferRequest) error {
	const title = "Transfer stock"

	if _, err := requireAdmin(ctx); err != nil {
		return s.fail(title, err)
	}
	from := domain.NormalizeLokasi(req.From)
	to := domain.NormalizeLokasi(req.To)
	switch {
	case !domain.IsStockLocation(from) || !domain.IsStockLocation(to):
		return s.fail(title, validationf("from and to must be stock locations"))
	case from == to:
		return s.fail(title, validationf("from and to must differ"))
	case req.Qty < 1:
		return s.fail(title, validationf("qty must be at least 1"))
	}
	item, err := s.stockedItem(ctx, req.ItemID)
	if err != nil {
		return s.fail(title, err)
	}
	if err := s.moveStock(ctx, item, from, to, req.Qty); err != nil {
		return s.fail(title, err)
	}
	s.succeed(title, "%d x %s moved %s -> %s", req.Qty, item.Name, from, to)
	return nil
}

func (s *Service) moveStock(ctx context.Context, item domain.CatalogItem, from, to string, qty int) error {
	if err := s.repo.TransferStock(ctx, item.ID, from, to, qty); err != nil {
		return err
	}
	s.logStock(ctx, item, from, -qty, "transfer to "+to)
	s.logStock(ctx, item, to, qty, "transfer from "+from)
	s.publisher.Publish(realtime.TableStock, from, map[string]any{"item_id": item.ID, "delta": -qty})
	s.publisher.Publish(realtime.TableStock, to, map[string]any{"item_id": item.ID, "delta": qty})
	return nil
}

func (s *Service) stockedItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	item, err := s.repo.GetCatalogItem(ctx, id)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if !item.Kind.Stocked() {
		return domain.CatalogItem{}, validationf("%s items carry no stock", item.Kind)
	}
	return *item, nil
}

func (s *Service) ListStockLogs(ctx context.Context, lokasi string, limit int) ([]domain.StockLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultStockLogLimit
	}
	return s.repo.ListStockLogs(ctx, domain.NormalizeLokasi(lokasi), limit)
}

// CreateStockRequest files a worker's request for more accessories from the
// warehouse, or a return of accessories to it.
func (s *Service) CreateStockRequest(ctx context.Context, req domain.StockRequestCreate) (domain.StockRequest, error) {
	const title = "Stock request"

	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	if !domain.IsLocation(actor.Lokasi) {
		return domain.StockRequest{}, s.fail(title, validationf("account has no shop location"))
	}
	if req.Type != domain.RequestStock && req.Type != domain.ReturnItem {
		return domain.StockRequest{}, s.fail(title, validationf("type must be REQUEST_STOCK or RETURN_ITEM"))
	}
	if req.Qty < 1 {
		return domain.StockRequest{}, s.fail(title, validationf("qty must be at least 1"))
	}
	item, err := s.repo.GetCatalogItem(ctx, req.AccessoryID)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	if item.Kind != domain.KindAccessory {
		return domain.StockRequest{}, s.fail(title, validationf("%s is not an accessory", item.ID))
	}

	saved, err := s.repo.CreateStockRequest(ctx, domain.StockRequest{
		ID:          xid.New("streq"),
		Type:        req.Type,
		AccessoryID: item.ID,
		Lokasi:      actor.Lokasi,
		Qty:         req.Qty,
		Note:        strings.TrimSpace(req.Note),
		Status:      domain.StockRequestPending,
		RequestedBy: actor.Username,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableStockRequests, saved.Lokasi, saved)
	s.succeed(title, "%s x%d sent for approval", item.Name, saved.Qty)
	return *saved, nil
}

// ListStockRequests shows workers their own location's requests; admins may
// filter by any location.
func (s *Service) ListStockRequests(ctx context.Context, lokasi string, status domain.StockRequestStatus) ([]domain.StockRequest, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		lokasi = actor.Lokasi
	}
	return s.repo.ListStockRequests(ctx, domain.NormalizeLokasi(lokasi), status)
}

// ApproveStockRequest moves the stock first and only then marks the request
// approved. REQUEST_STOCK pulls from the warehouse; RETURN_ITEM puts
// accessories back into the requester's shop count.
// ApproveStockRequest claims the request before touching stock, so two
// approvals cannot both move it. A failed movement reopens the request.
func (s *Service) ApproveStockRequest(ctx context.Context, id string) (domain.StockRequest, error) {
	const title = "Approve stock request"

	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	request, err := s.pendingStockRequest(ctx, id)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	item, err := s.stockedItem(ctx, request.AccessoryID)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	if request.Type != domain.RequestStock && request.Type != domain.ReturnItem {
		return domain.StockRequest{}, s.fail(title, validationf("unknown request type %q", request.Type))
	}

	claimed, err := s.decideStockRequest(ctx, request, domain.StockRequestApproved, actor.Username)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}

	if request.Type == domain.RequestStock {
		err = s.moveStock(ctx, item, domain.LokasiGudang, request.Lokasi, request.Qty)
	} else if _, err = s.repo.AdjustStock(ctx, item.ID, request.Lokasi, request.Qty); err == nil {
		s.logStock(ctx, item, request.Lokasi, request.Qty, "return approved: "+request.ID)
		s.publisher.Publish(realtime.TableStock, request.Lokasi, map[string]any{"item_id": item.ID, "delta": request.Qty})
	}
	if err != nil {
		if reopenErr := s.repo.ReopenStockRequest(ctx, request.ID); reopenErr != nil {
			log.Printf("[service] ERROR: request %s approved without stock movement: %v", request.ID, reopenErr)
		}
		return domain.StockRequest{}, s.fail(title, err)
	}

	s.announceStockRequest(title, claimed)
	return claimed, nil
}

func (s *Service) RejectStockRequest(ctx context.Context, id string) (domain.StockRequest, error) {
	const title = "Reject stock request"

	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	request, err := s.pendingStockRequest(ctx, id)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	rejected, err := s.decideStockRequest(ctx, request, domain.StockRequestRejected, actor.Username)
	if err != nil {
		return domain.StockRequest{}, s.fail(title, err)
	}
	s.announceStockRequest(title, rejected)
	return rejected, nil
}

func (s *Service) pendingStockRequest(ctx context.Context, id string) (domain.StockRequest, error) {
	request, err := s.repo.GetStockRequest(ctx, id)
	if err != nil {
		return domain.StockRequest{}, err
	}
	if request.Status != domain.StockRequestPending {
		return domain.StockRequest{}, validationf("request %s is already %s", request.ID, request.Status)
	}
	return *request, nil
}

// decideStockRequest moves a PENDING request to status. The store refuses
// anything that is no longer PENDING.
func (s *Service) decideStockRequest(ctx context.Context, request domain.StockRequest, status domain.StockRequestStatus, decidedBy string) (domain.StockRequest, error) {
	at := s.now()
	request.Status = status
	request.DecidedBy = decidedBy
	request.DecidedAt = &at

	saved, err := s.repo.UpdateStockRequestStatus(ctx, request)
	if err != nil {
		return domain.StockRequest{}, fmt.Errorf("update request %s: %w", request.ID, err)
	}
	return *saved, nil
}

func (s *Service) announceStockRequest(title string, request domain.StockRequest) {
	s.publisher.Publish(realtime.TableStockRequests, request.Lokasi, request)
	s.succeed(title, "Request %s %s", request.ID, request.Status)
}
