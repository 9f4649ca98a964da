package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"urlguard/internal/auth"
)

// Article is demo content served behind URL permission checks.
type Article struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Articles is an in-memory article list used by the demo content routes.
type Articles struct {
	mu     sync.RWMutex
	nextID int64
	items  []Article
}

func NewArticles() *Articles {
	return &Articles{nextID: 1}
}

func (a *Articles) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.mu.RLock()
		out := append([]Article{}, a.items...)
		a.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"articles": out})
	}
}

func (a *Articles) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.mu.Lock()
		art := Article{ID: a.nextID, Title: in.Title, Author: auth.PrincipalFrom(c).Email, CreatedAt: time.Now()}
		a.nextID++
		a.items = append(a.items, art)
		a.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"article": art})
	}
}

func (a *Articles) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, art := range a.items {
			if art.ID == id {
				a.items = append(a.items[:i], a.items[i+1:]...)
				c.Status(http.StatusNoContent)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
	}
}

// Reports answers with a fixed summary; every method is routed to it.
func Reports() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"report":       "monthly",
			"generated_at": time.Now().UTC(),
			"method":       c.Request.Method,
		})
	}
}
