package recipes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"barrobot/internal/models"
)

const martiniJSON = `{"drinks":[{
	"idDrink":"11728","strDrink":"Martini","strDrinkThumb":"https://img/martini.jpg",
	"strInstructions":"Stir.",
	"strIngredient1":"Gin","strMeasure1":"1 2/3 oz",
	"strIngredient2":"Dry Vermouth","strMeasure2":"1/3 oz",
	"strIngredient3":"Olive","strMeasure3":"1 piece",
	"strIngredient4":null,"strMeasure4":null,
	"strIngredient5":"","strMeasure5":""
}]}`

func TestImporterFreeLoop(t *testing.T) {
	var mu sync.Mutex
	var letters []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/json/v1/1/search.php", r.URL.Path)
		f := r.URL.Query().Get("f")
		mu.Lock()
		letters = append(letters, f)
		mu.Unlock()

		switch f {
		case "m":
			w.Write([]byte(martiniJSON))
		case "x":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"drinks":null}`))
		}
	}))
	defer srv.Close()

	imp := NewImporter(srv.URL, "", time.Second, zaptest.NewLogger(t))
	assert.False(t, imp.Paid())

	recipes, err := imp.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, letters, 26)

	require.Len(t, recipes, 1)
	r := recipes[0]
	assert.Equal(t, "11728", r.ID)
	assert.Equal(t, "Martini", r.Name)
	assert.Equal(t, "https://img/martini.jpg", r.Image)
	require.Len(t, r.Ingredients, 3)
	assert.Equal(t, models.IngredientLine{Item: "gin", QtyOz: 7.59, Raw: "1 2/3 oz"}, r.Ingredients[0])
	assert.Equal(t, models.IngredientLine{Item: "dry vermouth", QtyOz: 1.5, Raw: "1/3 oz"}, r.Ingredients[1])
	assert.Equal(t, 0.0, r.Ingredients[2].QtyOz)
}

func TestImporterPaidSingleCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/json/v2/secret/search.php", r.URL.Path)
		assert.True(t, r.URL.Query().Has("s"))
		w.Write([]byte(martiniJSON))
	}))
	defer srv.Close()

	imp := NewImporter(srv.URL, "secret", time.Second, nil)
	require.True(t, imp.Paid())

	recipes, err := imp.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, recipes, 1)
	assert.Equal(t, 1, calls)
}

func TestImporterPaidFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewImporter(srv.URL, "secret", time.Second, nil).Fetch(context.Background())
	assert.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	log := zaptest.NewLogger(t)
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"drinks":null}`))
	}))
	defer empty.Close()

	t.Run("falls back when the download is empty", func(t *testing.T) {
		s := newStore(t)
		fallback := []models.Recipe{{ID: "seed", Name: "Seed"}}
		require.NoError(t, Bootstrap(context.Background(), s, NewImporter(empty.URL, "", time.Second, log), fallback, log))

		r, err := s.Get("seed")
		require.NoError(t, err)
		assert.Equal(t, "Seed", r.Name)
	})

	t.Run("leaves a populated cache alone", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.ReplaceAll([]models.Recipe{{ID: "a", Name: "A"}}))
		require.NoError(t, Bootstrap(context.Background(), s, nil, []models.Recipe{{ID: "b"}}, log))
		_, err := s.Get("b")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nothing at all", func(t *testing.T) {
		s := newStore(t)
		err := Bootstrap(context.Background(), s, NewImporter(empty.URL, "", time.Second, log), nil, log)
		assert.ErrorIs(t, err, ErrEmptyCatalogue)
	})
}

func TestScheduleRejectsBadExpression(t *testing.T) {
	imp := NewImporter("", "", time.Second, nil)
	assert.Error(t, imp.Schedule(context.Background(), newStore(t), "not a cron"))
}
