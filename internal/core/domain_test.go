package core

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func validRule() RecurringRule {
	return RecurringRule{
		ID:         1,
		UserID:     7,
		CategoryID: 3,
		Type:       Expense,
		Amount:     MustParseMoney("850.00"),
		Frequency:  EveryMonthOn(25),
		StartDate:  NewDate(2024, 1, 25),
		Active:     true,
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	if err := validRule().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	end := NewDate(2023, 12, 31)
	watermark := NewDate(2024, 1, 25)
	tooLong := make([]byte, 201)
	for i := range tooLong {
		tooLong[i] = 'x'
	}

	cases := []struct {
		name   string
		mutate func(r *RecurringRule)
		field  string
	}{
		{"missing category", func(r *RecurringRule) { r.CategoryID = 0 }, "category_id"},
		{"unknown type", func(r *RecurringRule) { r.Type = "transfer" }, "type"},
		{"zero amount", func(r *RecurringRule) { r.Amount = MoneyFromCents(0) }, "amount"},
		{"negative amount", func(r *RecurringRule) { r.Amount = MoneyFromCents(-100) }, "amount"},
		{"description too long", func(r *RecurringRule) { r.Description = string(tooLong) }, "description"},
		{"no frequency", func(r *RecurringRule) { r.Frequency = nil }, "frequency"},
		{"day of month 32", func(r *RecurringRule) { r.Frequency = EveryMonthOn(32) }, "day_of_month"},
		{"day of month 0", func(r *RecurringRule) { r.Frequency = EveryMonthOn(0) }, "day_of_month"},
		{"day of week 7", func(r *RecurringRule) { r.Frequency = EveryWeekOn(Weekday(7)) }, "day_of_week"},
		{"zero start", func(r *RecurringRule) { r.StartDate = Date{} }, "start_date"},
		{"end before start", func(r *RecurringRule) { r.EndDate = &end }, "end_date"},
		{"start after watermark", func(r *RecurringRule) {
			r.Watermark = &watermark
			r.StartDate = NewDate(2024, 2, 1)
		}, "start_date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRule()
			tc.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
			if !IsValidation(err) {
				t.Fatalf("expected errors.Is(err, ErrValidation)")
			}
		})
	}
}

func TestRecurringRuleEndDateEqualStart(t *testing.T) {
	r := validRule()
	end := r.StartDate
	r.EndDate = &end
	if err := r.Validate(); err != nil {
		t.Fatalf("single-day rule should be valid, got %v", err)
	}
}

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		name       string
		kind       string
		dayOfWeek  *int
		dayOfMonth *int
		want       FrequencyKind
		wantErr    bool
	}{
		{"daily", "daily", nil, nil, Daily, false},
		{"weekly no anchor", "weekly", nil, nil, Weekly, false},
		{"weekly anchored", "Weekly", intPtr(2), nil, Weekly, false},
		{"monthly last day", "monthly", nil, nil, Monthly, false},
		{"monthly anchored", "monthly", nil, intPtr(31), Monthly, false},
		{"yearly", " yearly ", nil, nil, Yearly, false},
		{"unknown", "biweekly", nil, nil, "", true},
		{"day of week on monthly", "monthly", intPtr(1), nil, "", true},
		{"day of month on weekly", "weekly", nil, intPtr(1), "", true},
		{"day of month on daily", "daily", nil, intPtr(1), "", true},
		{"day of week out of range", "weekly", intPtr(-1), nil, "", true},
		{"day of month out of range", "monthly", nil, intPtr(40), "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFrequency(tc.kind, tc.dayOfWeek, tc.dayOfMonth)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseFrequency() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if f.Kind() != tc.want {
				t.Fatalf("kind = %s, want %s", f.Kind(), tc.want)
			}
			dow, dom := FrequencyAnchors(f)
			if (dow == nil) != (tc.dayOfWeek == nil) || (dow != nil && *dow != *tc.dayOfWeek) {
				t.Fatalf("day of week did not round trip: %v", dow)
			}
			if (dom == nil) != (tc.dayOfMonth == nil) || (dom != nil && *dom != *tc.dayOfMonth) {
				t.Fatalf("day of month did not round trip: %v", dom)
			}
		})
	}
}

func TestPendingWindow(t *testing.T) {
	r := validRule()
	if got := r.PendingFrom(); !got.Equal(r.StartDate) {
		t.Fatalf("PendingFrom without watermark = %s, want start %s", got, r.StartDate)
	}

	wm := NewDate(2024, 3, 25)
	r.Watermark = &wm
	if got := r.PendingFrom(); !got.Equal(NewDate(2024, 3, 26)) {
		t.Fatalf("PendingFrom = %s, want 2024-03-26", got)
	}

	target := NewDate(2024, 12, 31)
	if got := r.PendingTo(target); !got.Equal(target) {
		t.Fatalf("PendingTo unbounded = %s", got)
	}
	end := NewDate(2024, 6, 15)
	r.EndDate = &end
	if got := r.PendingTo(target); !got.Equal(end) {
		t.Fatalf("PendingTo bounded = %s, want %s", got, end)
	}
}

func TestTransactionRequest(t *testing.T) {
	r := validRule()
	req := r.TransactionRequest(NewDate(2024, 2, 25))
	if req.Description != DefaultDescription {
		t.Fatalf("description = %q, want default", req.Description)
	}
	if req.IdempotencyKey != "recurring:1:2024-02-25" {
		t.Fatalf("idempotency key = %q", req.IdempotencyKey)
	}
	if req.UserID != 7 || req.CategoryID != 3 || req.Type != Expense || !req.Amount.Equal(r.Amount) {
		t.Fatalf("payload not copied: %+v", req)
	}

	r.Description = "  Rent "
	if got := r.TransactionRequest(NewDate(2024, 2, 25)).Description; got != "Rent" {
		t.Fatalf("description = %q, want trimmed", got)
	}
}

func TestWeekdayConversion(t *testing.T) {
	pairs := map[Weekday]time.Weekday{
		Monday:    time.Monday,
		Wednesday: time.Wednesday,
		Saturday:  time.Saturday,
		Sunday:    time.Sunday,
	}
	for w, tw := range pairs {
		if w.Time() != tw {
			t.Fatalf("%d.Time() = %s, want %s", w, w.Time(), tw)
		}
		if WeekdayFrom(tw) != w {
			t.Fatalf("WeekdayFrom(%s) = %d, want %d", tw, WeekdayFrom(tw), w)
		}
	}
	// 2024-03-01 was a Friday.
	if got := NewDate(2024, 3, 1).DayOfWeek(); got != Friday {
		t.Fatalf("DayOfWeek = %s, want Friday", got)
	}
}
