package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/balamir53/snackforge/internal/store"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	return skip, limit
}

func (s *Server) listItems(c *gin.Context) {
	skip, limit := pageParams(c)
	items, err := s.store.ListItems(c.Request.Context(), skip, limit)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := s.store.GetItem(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) createItem(c *gin.Context) {
	var in store.ItemCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.store.CreateItem(c.Request.Context(), in)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) updateItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in store.ItemUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.store.UpdateItem(c.Request.Context(), id, in)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := s.store.DeleteItem(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func (s *Server) listUsers(c *gin.Context) {
	skip, limit := pageParams(c)
	users, err := s.store.ListUsers(c.Request.Context(), skip, limit)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := s.store.GetUser(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) createUser(c *gin.Context) {
	var in store.UserCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.store.CreateUser(c.Request.Context(), in)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in store.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.store.UpdateUser(c.Request.Context(), id, in)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := s.store.DeleteUser(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
