package database

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    phone VARCHAR(16) PRIMARY KEY,
    password VARCHAR(255) NOT NULL,
    remaining_uses INT NOT NULL,
    images_generated INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_login_at TIMESTAMP NULL
);

CREATE TABLE IF NOT EXISTS tallies (
    id TINYINT PRIMARY KEY,
    total_users INT NOT NULL DEFAULT 0,
    total_images INT NOT NULL DEFAULT 0
);

INSERT IGNORE INTO tallies (id, total_users, total_images) VALUES (1, 0, 0);
`
