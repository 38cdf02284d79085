package structure

import (
	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// Tables returns the definitions of the three tables of a structure set:
// structure rows, index rows and unique rows. Set names are validated
// identifiers, so building cannot fail.
func Tables(s *schema.Schema) []*db.TableDefinition {
	idType := db.ColumnKey
	if s.ID().Kind().IsIdentity() {
		idType = db.ColumnBigInt
	}

	st := s.StructureTable()
	structure := db.NewTable(st).
		RowID(schema.ColRowID).
		Typed(schema.ColStructureID, idType).NotNull().
		Text(schema.ColJSON).NotNull().
		Unique("UQ_"+st+"_Id", schema.ColStructureID).
		MustBuild()

	it := s.IndexesTable()
	indexes := db.NewTable(it).
		Typed(schema.ColStructureID, idType).NotNull().
		Key(schema.ColMemberPath).NotNull().
		Text(schema.ColStringValue).
		BigInt(schema.ColIntegerValue).
		Float(schema.ColFractionalValue).
		Bool(schema.ColBooleanValue).
		Key(schema.ColDateTimeValue).
		Key(schema.ColGuidValue).
		Index("IX_"+it+"_Id", schema.ColStructureID, schema.ColMemberPath).
		Index("IX_"+it+"_Member", schema.ColMemberPath).
		MustBuild()

	ut := s.UniquesTable()
	uniques := db.NewTable(ut).
		Typed(schema.ColStructureID, idType).NotNull().
		Key(schema.ColUqName).NotNull().
		LongKey(schema.ColUqValue).NotNull().
		Unique("UQ_"+ut, schema.ColUqName, schema.ColUqValue).
		Index("IX_"+ut+"_Id", schema.ColStructureID).
		MustBuild()

	return []*db.TableDefinition{structure, indexes, uniques}
}
