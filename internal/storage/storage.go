package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound возвращается, когда запись не найдена или принадлежит другому пользователю.
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// ErrQueryFailed оборачивает сбой бэкенда при чтении (сеть, БД).
var ErrQueryFailed = errors.New("query failed")

// User — учётная запись. ID совпадает с subject в JWT.
type User struct {
	ID           string
	Email        *string
	PasswordHash *string
	Username     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UsersStorage — интерфейс для работы с пользователями
type UsersStorage interface {
	// CreateUser создаёт пользователя, ErrEmailTaken при дубликате email
	CreateUser(ctx context.Context, user *User) error

	// GetUser возвращает пользователя по ID
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail ищет пользователя по email (без учёта регистра)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpsertUsername обновляет имя, создавая запись без email при необходимости
	UpsertUsername(ctx context.Context, id string, username string) (*User, error)
}

// Item — продукт каталога. Нутриенты указаны на 100 единиц DefaultUnit.
type Item struct {
	ID          uuid.UUID
	OwnerUserID string
	Name        string
	Description *string
	Calories    *float64
	Protein     *float64
	Carbs       *float64
	Fat         *float64
	Fiber       *float64
	DefaultUnit string
	CreatedAt   time.Time
}

// ItemsStorage — интерфейс каталога продуктов
type ItemsStorage interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, ownerUserID string, id uuid.UUID) (*Item, error)

	// SearchItems фильтрует по подстроке имени без учёта регистра, сортирует по имени
	SearchItems(ctx context.Context, ownerUserID string, query string, limit int) ([]Item, error)

	// GetItemsByIDs возвращает найденные продукты, отсутствующие ID пропускаются
	GetItemsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]Item, error)
}

// MealItem — строка состава блюда, хранится в JSON-колонке meals.items.
type MealItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity float64   `json:"quantity"`
	Unit     string    `json:"unit"`
}

type Meal struct {
	ID          uuid.UUID
	OwnerUserID string
	Name        string
	Description *string
	Items       []MealItem
	CreatedAt   time.Time
}

// MealsStorage — интерфейс для блюд
type MealsStorage interface {
	CreateMeal(ctx context.Context, meal *Meal) error
	GetMeal(ctx context.Context, ownerUserID string, id uuid.UUID) (*Meal, error)
	SearchMeals(ctx context.Context, ownerUserID string, query string, limit int) ([]Meal, error)
	GetMealsByIDs(ctx context.Context, ownerUserID string, ids []uuid.UUID) ([]Meal, error)
}

// MealPlanEntry — блюдо, назначенное на дату и слот.
type MealPlanEntry struct {
	ID          uuid.UUID
	OwnerUserID string
	MealID      uuid.UUID
	Date        string // YYYY-MM-DD
	MealType    string
	Portions    float64
	Notes       *string
	CreatedAt   time.Time
}

// MealPlansStorage — интерфейс для записей плана питания
type MealPlansStorage interface {
	CreateEntry(ctx context.Context, entry *MealPlanEntry) error

	// ListEntries возвращает записи from <= date <= to по (date, created_at, id)
	ListEntries(ctx context.Context, ownerUserID string, from, to string) ([]MealPlanEntry, error)

	DeleteEntry(ctx context.Context, ownerUserID string, id uuid.UUID) error
}

// Exercise — упражнение недельного плана тренировок.
// DaysMask: бит 0 — понедельник, бит 6 — воскресенье.
type Exercise struct {
	ID          uuid.UUID
	OwnerUserID string
	Name        string
	Kind        string // strength | hypertrophy | endurance
	Sets        int
	Reps        int
	DaysMask    int
	PRWeight    *float64
	PRUnit      *string
	Note        *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExerciseCompletion — отметка о выполнении упражнения в конкретный день.
type ExerciseCompletion struct {
	ExerciseID  uuid.UUID
	OwnerUserID string
	Date        string // YYYY-MM-DD
	CreatedAt   time.Time
}

// ExercisesStorage — интерфейс плана тренировок и отметок о выполнении
type ExercisesStorage interface {
	CreateExercise(ctx context.Context, exercise *Exercise) error

	// UpdateExercise перезаписывает поля плана, ErrNotFound для чужого или удалённого
	UpdateExercise(ctx context.Context, exercise *Exercise) error

	// ListExercises возвращает упражнения по (created_at, id)
	ListExercises(ctx context.Context, ownerUserID string) ([]Exercise, error)

	// DeleteExercise удаляет упражнение вместе с отметками
	DeleteExercise(ctx context.Context, ownerUserID string, id uuid.UUID) error

	// SetCompletion ставит или снимает отметку, повтор не меняет состояние
	SetCompletion(ctx context.Context, ownerUserID string, exerciseID uuid.UUID, date string, done bool) error

	// ListCompletions возвращает отметки from <= date <= to
	ListCompletions(ctx context.Context, ownerUserID string, from, to string) ([]ExerciseCompletion, error)
}

// ChatStorage — интерфейс для хранения сообщений чата.
type ChatStorage interface {
	// InsertExchange атомарно сохраняет вопрос и ответ. Ответ всегда строго позже вопроса.
	InsertExchange(ctx context.Context, ownerUserID string, userContent, assistantContent string) (ChatExchange, error)

	// ListMessages возвращает последние limit сообщений до before в хронологическом порядке
	// и курсор для следующей страницы, если она есть.
	ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]ChatMessage, *time.Time, error)
}

// ChatExchange — пара реплик одного хода.
type ChatExchange struct {
	User      ChatMessage
	Assistant ChatMessage
}

type ChatMessage struct {
	ID          uuid.UUID
	OwnerUserID string
	Role        string
	Content     string
	CreatedAt   time.Time
}

// ReportsStorage — интерфейс для работы с отчётами
type ReportsStorage interface {
	// CreateReport сохраняет метаданные, сам файл лежит в blob store
	CreateReport(ctx context.Context, report *ReportMeta) error

	// GetReport возвращает отчёт по ID
	GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*ReportMeta, error)

	// ListReports возвращает список отчётов пользователя с пагинацией
	ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]ReportMeta, error)

	// CountReports считает отчёты пользователя
	CountReports(ctx context.Context, ownerUserID string) (int, error)

	// DeleteReport удаляет отчёт (metadata и данные)
	DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error
}

// ReportMeta — метаданные отчёта
type ReportMeta struct {
	ID          uuid.UUID
	OwnerUserID string
	Format      string  // "pdf" or "csv"
	FromDate    string  // YYYY-MM-DD, начало недели
	ToDate      string  // YYYY-MM-DD
	ObjectKey   *string // ключ в blob store
	SizeBytes   int64
	Status      string // "ready" or "failed"
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
