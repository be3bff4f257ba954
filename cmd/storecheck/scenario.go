package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

var errMismatch = errors.New("store returned unexpected state")

// target описывает, как строить и сравнивать сущности одного вида.
type target[T domain.Entity[T]] struct {
	kind   domain.Kind
	repo   domain.Repository[T]
	build  func(index int) T
	mutate func(T) T
	// same сравнивает записи целиком, включая метки времени.
	same func(a, b T) bool
}

func orderTarget(repo domain.OrderRepository, cfg config) target[domain.Order] {
	return target[domain.Order]{
		kind: domain.KindOrder,
		repo: repo,
		build: func(index int) domain.Order {
			now := time.Now().UTC()
			return domain.Order{
				CustomerID:  fmt.Sprintf("%s-%d", cfg.tag, index),
				Status:      "pending",
				Currency:    cfg.currency,
				AmountMinor: cfg.amountMinor,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		},
		mutate: func(o domain.Order) domain.Order {
			o.Status = "paid"
			o.AmountMinor *= 2
			o.UpdatedAt = time.Now().UTC()
			return o
		},
		same: func(a, b domain.Order) bool { return a == b },
	}
}

func productTarget(repo domain.ProductRepository, cfg config) target[domain.Product] {
	return target[domain.Product]{
		kind: domain.KindProduct,
		repo: repo,
		build: func(index int) domain.Product {
			now := time.Now().UTC()
			return domain.Product{
				SKU:        fmt.Sprintf("%s-SKU-%d", cfg.tag, index),
				Name:       fmt.Sprintf("Check product %d", index),
				Currency:   cfg.currency,
				PriceMinor: cfg.amountMinor,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
		},
		mutate: func(p domain.Product) domain.Product {
			p.PriceMinor++
			p.Description = "updated by storecheck"
			p.UpdatedAt = time.Now().UTC()
			return p
		},
		same: func(a, b domain.Product) bool { return a == b },
	}
}

// runScenario выполняет цикл save, find, upsert, exists и delete для одной сущности.
func runScenario[T domain.Entity[T]](ctx context.Context, tg target[T], cfg config, index int, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), resultOf(err))
	}()

	call := func(op string, fn func(ctx context.Context) error) error {
		start := time.Now()
		opCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
		err := fn(opCtx)
		col.record(string(tg.kind)+"."+op, time.Since(start), resultOf(err))
		return err
	}

	var saved T
	if err := call("save", func(ctx context.Context) error {
		var err error
		saved, err = tg.repo.Save(ctx, tg.build(index))
		if err == nil && saved.EntityID() <= 0 {
			return fmt.Errorf("%w: save returned id %d", errMismatch, saved.EntityID())
		}
		return err
	}); err != nil {
		return err
	}

	expectFound := func(op string, want T) error {
		return call(op, func(ctx context.Context) error {
			got, ok, err := tg.repo.FindByID(ctx, want.EntityID())
			if err != nil {
				return err
			}
			if !ok || !tg.same(got, want) {
				return fmt.Errorf("%w: find_by_id %d", errMismatch, want.EntityID())
			}
			return nil
		})
	}

	if err := expectFound("find_by_id", saved); err != nil {
		return err
	}

	var updated T
	if err := call("upsert", func(ctx context.Context) error {
		var err error
		updated, err = tg.repo.Save(ctx, tg.mutate(saved))
		if err == nil && updated.EntityID() != saved.EntityID() {
			return fmt.Errorf("%w: upsert changed id %d -> %d", errMismatch, saved.EntityID(), updated.EntityID())
		}
		return err
	}); err != nil {
		return err
	}
	if err := expectFound("find_after_upsert", updated); err != nil {
		return err
	}

	expectExists := func(op string, want bool) error {
		return call(op, func(ctx context.Context) error {
			exists, err := tg.repo.ExistsByID(ctx, saved.EntityID())
			if err != nil {
				return err
			}
			if exists != want {
				return fmt.Errorf("%w: exists_by_id %d = %t", errMismatch, saved.EntityID(), exists)
			}
			return nil
		})
	}

	if err := expectExists("exists_by_id", true); err != nil {
		return err
	}
	if cfg.keep {
		return nil
	}

	if err := call("delete_by_id", func(ctx context.Context) error {
		return tg.repo.DeleteByID(ctx, saved.EntityID())
	}); err != nil {
		return err
	}
	return expectExists("exists_after_delete", false)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, errMismatch):
		return resultMismatch
	default:
		return resultError
	}
}
