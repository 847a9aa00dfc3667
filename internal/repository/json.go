package repository

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

// JSONB codec helpers for promotion sub-structures. Target specs, combo
// constituents, and audit item lists live in JSONB columns; jx keeps the
// encoding allocation-light for the hot catalog scan path.

func encodeTargetSpec(spec promotion.TargetSpec) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(spec.Type))
	if spec.CategoryID != "" {
		e.FieldStart("category_id")
		e.Str(spec.CategoryID)
	}
	if len(spec.ItemIDs) > 0 {
		e.FieldStart("item_ids")
		e.ArrStart()
		for _, id := range spec.ItemIDs {
			e.Str(id)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeTargetSpec(raw []byte) (promotion.TargetSpec, error) {
	var spec promotion.TargetSpec
	if len(raw) == 0 {
		return spec, nil
	}
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			s, err := d.Str()
			spec.Type = promotion.TargetType(s)
			return err
		case "category_id":
			s, err := d.Str()
			spec.CategoryID = s
			return err
		case "item_ids":
			return d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				spec.ItemIDs = append(spec.ItemIDs, s)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return spec, errors.Wrap(err, "decode target spec")
	}
	return spec, nil
}

func encodeRequiredItems(items []promotion.RequiredItem) []byte {
	e := &jx.Encoder{}
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("menu_item_id")
		e.Str(it.MenuItemID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeRequiredItems(raw []byte) ([]promotion.RequiredItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []promotion.RequiredItem
	d := jx.DecodeBytes(raw)
	if err := d.Arr(func(d *jx.Decoder) error {
		var it promotion.RequiredItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "menu_item_id":
				s, err := d.Str()
				it.MenuItemID = s
				return err
			case "quantity":
				n, err := d.Int()
				it.Quantity = n
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode required items")
	}
	return items, nil
}

func encodeAppliedItems(items []promotion.AppliedItem) []byte {
	e := &jx.Encoder{}
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("menu_item_id")
		e.Str(it.MenuItemID)
		e.FieldStart("original_price")
		e.Str(it.OriginalPrice.String())
		e.FieldStart("discounted_price")
		e.Str(it.DiscountedPrice.String())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func encodeLineItems(items []promotion.LineItem) []byte {
	e := &jx.Encoder{}
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("menu_item_id")
		e.Str(it.MenuItemID)
		e.FieldStart("category_id")
		e.Str(it.CategoryID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
