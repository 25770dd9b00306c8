// Package models holds the GORM persistence models backing the
// interview and knowledge tables. Domain types stay free of ORM tags;
// each model here owns its table mapping and converts to and from its
// domain counterpart.
//
// Aggregate tables embed AggregateModel, whose version column guards
// concurrent writes; plain entity tables embed BaseModel.
package models
