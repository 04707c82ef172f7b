package testutil

import "cohortlens/internal/domain"

// ClinicalTables describes a small oncology dataset:
//
//	mutations.sample_id -> samples.sample_id
//	samples.patient_id  -> patients.patient_id
//	patients.site_id    -> sites.site_id
//
// plus treatments.patient_id -> patients.patient_id and an unrelated
// "audit_log" table.
func ClinicalTables() []domain.TableMetadata {
	return []domain.TableMetadata{
		{
			TableName:            "sites",
			QualifiedStorageName: "main.sites",
			Columns: []domain.ColumnMetadata{
				{Name: "site_id", DisplayType: domain.DisplayID},
				{Name: "region", DisplayType: domain.DisplayGeographic},
			},
		},
		{
			TableName:            "patients",
			QualifiedStorageName: "main.patients",
			Columns: []domain.ColumnMetadata{
				{Name: "patient_id", DisplayType: domain.DisplayID},
				{Name: "site_id", DisplayType: domain.DisplayID, Hidden: true},
				{Name: "sex", DisplayType: domain.DisplayCategorical},
				{Name: "age", DisplayType: domain.DisplayNumeric},
				{Name: "os_months", DisplayType: domain.DisplayNumeric},
				{Name: "os_status", DisplayType: domain.DisplayCategorical},
				{Name: "diagnosis_date", DisplayType: domain.DisplayDate},
			},
			Relationships: []domain.Relationship{
				{ForeignKey: "site_id", ReferencedTable: "sites", ReferencedColumn: "site_id", Type: domain.RelationshipManyToOne},
			},
		},
		{
			TableName:            "samples",
			QualifiedStorageName: "main.samples",
			Columns: []domain.ColumnMetadata{
				{Name: "sample_id", DisplayType: domain.DisplayID},
				{Name: "patient_id", DisplayType: domain.DisplayID},
				{Name: "tissue", DisplayType: domain.DisplayCategorical},
				{Name: "purity", DisplayType: domain.DisplayNumeric},
			},
			Relationships: []domain.Relationship{
				{ForeignKey: "patient_id", ReferencedTable: "patients", ReferencedColumn: "patient_id", Type: domain.RelationshipManyToOne},
			},
		},
		{
			TableName:            "mutations",
			QualifiedStorageName: "main.mutations",
			Columns: []domain.ColumnMetadata{
				{Name: "mutation_id", DisplayType: domain.DisplayID},
				{Name: "sample_id", DisplayType: domain.DisplayID},
				{Name: "gene", DisplayType: domain.DisplayCategorical},
				{Name: "vaf", DisplayType: domain.DisplayNumeric},
			},
			Relationships: []domain.Relationship{
				{ForeignKey: "sample_id", ReferencedTable: "samples", ReferencedColumn: "sample_id", Type: domain.RelationshipManyToOne},
			},
		},
		{
			TableName:            "treatments",
			QualifiedStorageName: "main.treatments",
			Columns: []domain.ColumnMetadata{
				{Name: "treatment_id", DisplayType: domain.DisplayID},
				{Name: "patient_id", DisplayType: domain.DisplayID},
				{Name: "drug", DisplayType: domain.DisplayCategorical},
			},
			Relationships: []domain.Relationship{
				{ForeignKey: "patient_id", ReferencedTable: "patients", ReferencedColumn: "patient_id", Type: domain.RelationshipManyToOne},
			},
		},
		{
			TableName:            "audit_log",
			QualifiedStorageName: "main.audit_log",
			Columns:              []domain.ColumnMetadata{{Name: "entry", DisplayType: domain.DisplayText}},
		},
	}
}
