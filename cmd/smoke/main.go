package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fdg312/nutrition-planner/internal/apiclient"
	"github.com/fdg312/nutrition-planner/internal/exercises"
	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/meals"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/reports"
	"github.com/google/uuid"
)

const (
	defaultAPIBase = "http://localhost:8080"
)

var (
	apiBase  string
	token    string
	client   *apiclient.Client
	testDate string

	// созданные ресурсы, для проверок и удаления
	oatsID     uuid.UUID
	milkID     uuid.UUID
	mealID     uuid.UUID
	entryID    uuid.UUID
	exerciseID uuid.UUID
	reportID   uuid.UUID
	report     reports.ReportDTO
)

func main() {
	fmt.Println("=== Nutrition Planner E2E Smoke Test ===")
	fmt.Println()

	// Load config from env
	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	token = getEnv("SMOKE_TOKEN", "")

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Token: %s\n", maskString(token))
	fmt.Println()

	client = apiclient.New(apiBase, apiclient.WithToken(token))

	// Test date (today)
	testDate = time.Now().Format(mealplans.DateLayout)

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"Healthz", testHealthz},
		{"Dev Token", testDevToken},
		{"Create Items", testCreateItems},
		{"Search Items (debounced)", testSearchItems},
		{"Build Meal", testBuildMeal},
		{"Meal Nutrients", testMealNutrients},
		{"Create Entry", testCreateEntry},
		{"Get Week", testGetWeek},
		{"Exercise Plan", testExercisePlan},
		{"Create Report (CSV)", testCreateReport},
		{"Download Report", testDownloadReport},
		{"Delete Report", testDeleteReport},
		{"Delete Entry", testDeleteEntry},
		{"Delete Exercise", testDeleteExercise},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := step.fn(ctx)
		cancel()
		if err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz(ctx context.Context) error {
	return client.Healthz(ctx)
}

// testDevToken берёт dev-токен, если токен не задан и сервер в AUTH_MODE=dev.
func testDevToken(ctx context.Context) error {
	if token != "" {
		return nil
	}

	resp, err := client.DevToken(ctx)
	if apiclient.IsStatus(err, 404) {
		// AUTH_MODE=none или password: работаем как локальный пользователь
		return nil
	}
	if err != nil {
		return err
	}
	client.SetToken(resp.AccessToken)
	return nil
}

func testCreateItems(ctx context.Context) error {
	oats, err := client.CreateItem(ctx, items.CreateItemRequest{
		Name:        "Smoke oats",
		Calories:    ptr(370),
		Protein:     ptr(13),
		Carbs:       ptr(60),
		Fat:         ptr(7),
		Fiber:       ptr(10),
		DefaultUnit: string(nutrition.Grams),
	})
	if err != nil {
		return err
	}
	oatsID = oats.ID

	milk, err := client.CreateItem(ctx, items.CreateItemRequest{
		Name:        "Smoke milk",
		Calories:    ptr(60),
		Protein:     ptr(3.2),
		Fat:         ptr(3.2),
		DefaultUnit: string(nutrition.Milliliters),
	})
	if err != nil {
		return err
	}
	milkID = milk.ID
	return nil
}

func testSearchItems(ctx context.Context) error {
	results := make(chan apiclient.Result[items.ItemDTO], 1)
	searcher := client.ItemSearcher(10, func(r apiclient.Result[items.ItemDTO]) { results <- r })
	defer searcher.Close()

	// печатаем по буквам, уходит только последний запрос
	for _, q := range []string{"s", "sm", "smo", "smoke"} {
		searcher.Query(q)
	}

	select {
	case r := <-results:
		if r.Query != "smoke" {
			return fmt.Errorf("expected result for %q, got %q", "smoke", r.Query)
		}
		if len(r.Items) < 2 {
			return fmt.Errorf("expected at least 2 items, got %d", len(r.Items))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testBuildMeal(ctx context.Context) error {
	b := meals.NewBuilder()
	b.Select(oatsID, nutrition.Grams)
	b.Select(milkID, nutrition.Milliliters)
	if _, err := b.Increment(milkID); err != nil {
		return err
	}
	if _, err := b.Decrement(oatsID); err != nil {
		return err
	}

	meal, err := client.SubmitMeal(ctx, b, "Smoke porridge", "50 g oats, 150 ml milk")
	if err != nil {
		return err
	}
	if len(meal.Items) != 2 {
		return fmt.Errorf("expected 2 lines, got %d", len(meal.Items))
	}
	mealID = meal.ID
	return nil
}

func testMealNutrients(ctx context.Context) error {
	resp, err := client.MealNutrients(ctx, mealID, 1)
	if err != nil {
		return err
	}
	// 50 g × 3.7 + 150 ml × 0.6
	if resp.Totals.Calories != 275 {
		return fmt.Errorf("expected 275 kcal, got %v", resp.Totals.Calories)
	}
	return nil
}

func testCreateEntry(ctx context.Context) error {
	entry, err := client.CreateEntry(ctx, mealplans.CreateEntryRequest{
		MealID:   mealID,
		Date:     testDate,
		MealType: string(nutrition.Breakfast),
	})
	if err != nil {
		return err
	}
	entryID = entry.ID
	return nil
}

func testGetWeek(ctx context.Context) error {
	week, err := client.Week(ctx, testDate)
	if err != nil {
		return err
	}
	if n := len(week.Cells()); n != 28 {
		return fmt.Errorf("expected 28 cells, got %d", n)
	}

	day, ok := week.Day(testDate)
	if !ok {
		return fmt.Errorf("day %s not in week %s..%s", testDate, week.Start, week.End)
	}
	for _, cell := range day.Cells {
		if cell.Slot == nutrition.Breakfast && cell.Entry != nil {
			return nil
		}
	}
	return fmt.Errorf("breakfast cell for %s is empty", testDate)
}

func testCreateReport(ctx context.Context) error {
	var err error
	report, err = client.CreateReport(ctx, reports.CreateReportRequest{Date: testDate, Format: reports.FormatCSV})
	if err != nil {
		return err
	}
	reportID = report.ID
	return nil
}

func testDownloadReport(ctx context.Context) error {
	data, err := client.Download(ctx, report.DownloadURL)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(data, []byte("date,weekday,meal_type")) {
		return fmt.Errorf("unexpected csv header: %.40q", data)
	}
	return nil
}

func testDeleteReport(ctx context.Context) error {
	if reportID == uuid.Nil {
		return fmt.Errorf("no report ID to delete")
	}
	return client.DeleteReport(ctx, reportID)
}

func testDeleteEntry(ctx context.Context) error {
	if entryID == uuid.Nil {
		return fmt.Errorf("no entry ID to delete")
	}
	return client.DeleteEntry(ctx, entryID)
}

func testExercisePlan(ctx context.Context) error {
	exercise, err := client.CreateExercise(ctx, exercises.UpsertExerciseRequest{
		Name:     "Flat Bench Press",
		Kind:     "strength",
		Sets:     5,
		Reps:     5,
		DaysMask: 127,
		PRWeight: ptr(65),
	})
	if err != nil {
		return err
	}
	exerciseID = exercise.ID

	if err := client.SetExerciseDone(ctx, exerciseID, testDate, true); err != nil {
		return err
	}
	week, err := client.ExerciseWeek(ctx, testDate)
	if err != nil {
		return err
	}
	for _, day := range week.Days {
		if day.Date != testDate {
			continue
		}
		for _, e := range day.Exercises {
			if e.ID == exerciseID && e.Done {
				return nil
			}
		}
	}
	return fmt.Errorf("exercise %s is not marked done on %s", exerciseID, testDate)
}

func testDeleteExercise(ctx context.Context) error {
	if exerciseID == uuid.Nil {
		return fmt.Errorf("no exercise ID to delete")
	}
	return client.DeleteExercise(ctx, exerciseID)
}

// Helper functions

func ptr(v float64) *float64 {
	return &v
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
