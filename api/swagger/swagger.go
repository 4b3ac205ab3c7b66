package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SCE API",
        "description": "Student, course and enrollment administration service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login and token refresh"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Courses", "description": "Course catalog management"},
        {"name": "Enrollments", "description": "Enrollment, attendance, grades and GPA"},
        {"name": "Reports", "description": "Asynchronous roster and transcript exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain token pair",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or spent refresh token"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student with an allocated roll number",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Roll number space exhausted"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student (roll number is immutable)",
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student",
                "responses": {"204": {"description": "No content"}}
            }
        },
        "/students/roll/{rollNo}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student by roll number",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course with an allocated course number",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Update a course (course number and capacity are immutable)",
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete a course",
                "responses": {"204": {"description": "No content"}}
            }
        },
        "/courses/no/{courseNo}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course by course number",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student in a course",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate enrollment or course full"}
                }
            }
        },
        "/enrollments/detail": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get a single enrollment with attendance",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/enrollments/unenroll": {
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Remove a student from a course",
                "responses": {"204": {"description": "No content"}, "404": {"description": "Not found"}}
            }
        },
        "/enrollments/update": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Replace an enrollment's state",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/enrollments/attendance": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List attendance dates",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Mark attendance for a day",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments/gpa/{studentRollNo}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Compute a student's GPA",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown student"}}
            }
        },
        "/enrollments/grade": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Set the grade for an enrollment",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid grade"}}
            }
        },
        "/enrollments/students/{courseNo}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List students enrolled in a course",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown course"}}
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a roster or transcript export",
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get report job status",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report via signed token",
                "responses": {"200": {"description": "File stream"}, "404": {"description": "Expired or unknown token"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
