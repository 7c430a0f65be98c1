package models

// JobCategory is one selectable certification category together with its
// exam projects, as served by /api/config/job_categories.
type JobCategory struct {
	Name         string       `json:"name"`
	TrainingType TrainingType `json:"training_type"`
	ExamProjects []string     `json:"exam_projects"`
}

// OperationJobCategories are the special-operation track categories.
var OperationJobCategories = []JobCategory{
	{Name: "电工作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"低压电工作业", "高压电工作业", "电力电缆作业", "电气试验作业", "继电保护作业", "防爆电气作业",
	}},
	{Name: "焊接与热切割作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"熔化焊接与热切割作业", "压力焊作业", "钎焊作业",
	}},
	{Name: "高处作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"登高架设作业", "高处安装、维护、拆除作业",
	}},
	{Name: "制冷与空调作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"制冷与空调设备运行操作作业", "制冷与空调设备安装修理作业",
	}},
	{Name: "金属非金属矿山安全作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"金属非金属矿井通风作业", "金属非金属矿山安全检查作业",
	}},
	{Name: "危险化学品安全作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"光气及光气化工艺作业", "氯碱电解工艺作业",
	}},
	{Name: "烟花爆竹安全作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"烟火药制造作业", "黑火药制造作业",
	}},
	{Name: "建筑施工安全作业", TrainingType: TrainingSpecialOperation, ExamProjects: []string{
		"建筑电工", "建筑架子工", "建筑起重信号司索工",
	}},
}

// EquipmentJobCategories are the special-equipment track categories.
var EquipmentJobCategories = []JobCategory{
	{Name: "场(厂)内专用机动车辆作业", TrainingType: TrainingSpecialEquipment, ExamProjects: []string{
		"叉车司机", "观光车和观光列车司机",
	}},
	{Name: "锅炉作业", TrainingType: TrainingSpecialEquipment, ExamProjects: []string{
		"工业锅炉司炉", "锅炉水处理",
	}},
	{Name: "起重机械作业", TrainingType: TrainingSpecialEquipment, ExamProjects: []string{
		"起重机司机", "起重机械指挥",
	}},
	{Name: "压力容器作业", TrainingType: TrainingSpecialEquipment, ExamProjects: []string{
		"快开门式压力容器操作", "移动式压力容器充装",
	}},
	{Name: "电梯作业", TrainingType: TrainingSpecialEquipment, ExamProjects: []string{
		"电梯修理",
	}},
}

// AllJobCategories returns both tracks' categories, operation first.
func AllJobCategories() []JobCategory {
	out := make([]JobCategory, 0, len(OperationJobCategories)+len(EquipmentJobCategories))
	out = append(out, OperationJobCategories...)
	out = append(out, EquipmentJobCategories...)
	return out
}

// InferTrainingType resolves the track for a job category name, defaulting
// to the operation track when the category matches neither list.
func InferTrainingType(jobCategory string) TrainingType {
	for _, c := range EquipmentJobCategories {
		if c.Name == jobCategory {
			return TrainingSpecialEquipment
		}
	}
	return TrainingSpecialOperation
}
